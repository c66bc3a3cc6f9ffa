package storage

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/ansel1/merry"
	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"

	"bf16lut/pkg/common"
	"bf16lut/pkg/core/generator"
)

// [Magic 4B] [RawSize 4B] [CRC32 4B] [Body]
// Body is an LZ4 block of msgpack(Table), or the msgpack bytes themselves
// when they do not compress.

const (
	magicLZ4          = "LUT1"
	magicRaw          = "LUT0"
	payloadHeaderSize = 4 + 4 + 4
	maxPayloadSize    = 64 << 20
)

// EncodePayload serialises a table for the archive.
func EncodePayload(t *generator.Table) ([]byte, error) {
	raw, err := msgpack.Marshal(t)
	if err != nil {
		return nil, merry.Wrap(err)
	}

	out := make([]byte, payloadHeaderSize+lz4.CompressBlockBound(len(raw)))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(raw)))
	binary.LittleEndian.PutUint32(out[8:12], crc32.ChecksumIEEE(raw))

	var c lz4.Compressor
	n, err := c.CompressBlock(raw, out[payloadHeaderSize:])
	if err != nil {
		return nil, merry.Wrap(err)
	}
	if n == 0 || n >= len(raw) {
		copy(out[0:4], magicRaw)
		n = copy(out[payloadHeaderSize:], raw)
	} else {
		copy(out[0:4], magicLZ4)
	}
	return out[:payloadHeaderSize+n], nil
}

// DecodePayload reverses EncodePayload. Any mismatch is ErrCorruptPayload.
func DecodePayload(data []byte) (*generator.Table, error) {
	if len(data) < payloadHeaderSize {
		return nil, common.ErrCorruptPayload.WithValue("reason", "short header")
	}
	size := binary.LittleEndian.Uint32(data[4:8])
	sum := binary.LittleEndian.Uint32(data[8:12])
	body := data[payloadHeaderSize:]

	var raw []byte
	var n int
	switch string(data[0:4]) {
	case magicLZ4:
		if size > maxPayloadSize {
			return nil, common.ErrCorruptPayload.WithValue("size", size)
		}
		raw = make([]byte, size)
		var err error
		n, err = lz4.UncompressBlock(body, raw)
		if err != nil {
			return nil, common.ErrCorruptPayload.WithCause(err)
		}
	case magicRaw:
		raw, n = body, len(body)
	default:
		return nil, common.ErrCorruptPayload.WithValue("reason", "bad magic")
	}
	if uint32(n) != size || crc32.ChecksumIEEE(raw[:n]) != sum {
		return nil, common.ErrCorruptPayload.WithValue("reason", "checksum mismatch")
	}

	var t generator.Table
	if err := msgpack.Unmarshal(raw[:n], &t); err != nil {
		return nil, common.ErrCorruptPayload.WithCause(err)
	}
	return &t, nil
}
