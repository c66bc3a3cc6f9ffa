package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bf16lut/pkg/common"
	"bf16lut/pkg/core/generator"
	"bf16lut/pkg/core/partition"
	"bf16lut/pkg/model"
)

func sampleTable(n int) *generator.Table {
	entries := make([]common.Entry, n)
	for i := range entries {
		entries[i] = common.Entry{
			Index:       i,
			DomainStart: 0.25 + float64(i)/64,
			DomainEnd:   0.25 + float64(i+1)/64,
			Slope:       0.8 + float64(i)*0.01,
			Intercept:   1.0,
			MaxError:    0.5,
			AvgError:    0.25,
			Points:      8,
		}
	}
	return &generator.Table{
		Function: "exp2",
		Policy:   partition.EqualCount,
		Interval: common.Interval{Start: 0.25, End: 0.5},
		Entries:  entries,
	}
}

func openArchive(t *testing.T) *SQLiteArchive {
	t.Helper()
	a, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestPayloadRoundTrip(t *testing.T) {
	for _, n := range []int{1, 16, 256} {
		in := sampleTable(n)
		in.Bins = []partition.Bin{{Index: 0}}

		data, err := EncodePayload(in)
		require.NoError(t, err)

		out, err := DecodePayload(data)
		require.NoError(t, err)
		assert.Equal(t, in.Function, out.Function)
		assert.Equal(t, in.Policy, out.Policy)
		assert.Equal(t, in.Interval, out.Interval)
		assert.Equal(t, in.Entries, out.Entries)
		assert.Nil(t, out.Bins)
	}
}

func TestPayloadCompresses(t *testing.T) {
	data, err := EncodePayload(sampleTable(256))
	require.NoError(t, err)
	assert.Equal(t, magicLZ4, string(data[:4]))
}

func TestPayloadCorruption(t *testing.T) {
	data, err := EncodePayload(sampleTable(64))
	require.NoError(t, err)

	_, err = DecodePayload(data[:8])
	assert.True(t, errors.Is(err, common.ErrCorruptPayload))

	bad := append([]byte(nil), data...)
	copy(bad, "XXXX")
	_, err = DecodePayload(bad)
	assert.True(t, errors.Is(err, common.ErrCorruptPayload))

	bad = append([]byte(nil), data...)
	bad[9] ^= 0xFF
	_, err = DecodePayload(bad)
	assert.True(t, errors.Is(err, common.ErrCorruptPayload))
}

func TestArchiveSaveLoad(t *testing.T) {
	a := openArchive(t)
	table := sampleTable(16)
	key := RunKey("exp2", "equal-count", table.Interval, 16, model.DefaultFitOptions())

	_, ok, err := a.Load(key)
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := a.Save(key, table)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, ok, err := a.Load(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, table.Entries, got.Entries)

	byID, err := a.Get(id)
	require.NoError(t, err)
	assert.Equal(t, table.Entries, byID.Entries)

	_, err = a.Get(id + 100)
	assert.True(t, errors.Is(err, common.ErrNoTable))
}

func TestArchiveReplaceAndList(t *testing.T) {
	a := openArchive(t)
	opts := model.DefaultFitOptions()
	iv := common.Interval{Start: 0.25, End: 0.5}

	k1 := RunKey("exp2", "equal-count", iv, 16, opts)
	k2 := RunKey("exp2", "equal-count", iv, 8, opts)
	require.NotEqual(t, k1, k2)

	_, err := a.Save(k1, sampleTable(16))
	require.NoError(t, err)
	_, err = a.Save(k2, sampleTable(8))
	require.NoError(t, err)
	_, err = a.Save(k1, sampleTable(16))
	require.NoError(t, err)

	runs, err := a.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, k1, runs[0].Key)
	assert.Equal(t, 16, runs[0].Bins)
	assert.Equal(t, "equal-count", runs[0].Policy)
	assert.Equal(t, 0.5, runs[0].WorstError)
	assert.Greater(t, runs[0].PayloadSize, 0)

	require.NoError(t, a.Truncate())
	runs, err = a.List()
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunKeyDistinguishesOptions(t *testing.T) {
	iv := common.Interval{Start: 0.25, End: 0.5}
	opts := model.DefaultFitOptions()
	other := opts
	other.Coordinate.MaxIter = 10

	assert.NotEqual(t,
		RunKey("exp2", "geometric", iv, 16, opts),
		RunKey("exp2", "geometric", iv, 16, other))
	assert.NotEqual(t,
		RunKey("exp2", "geometric", iv, 16, opts),
		RunKey("exp", "geometric", iv, 16, opts))

	capped := opts
	capped.Simplex.MaxEval = 200
	assert.NotEqual(t,
		RunKey("exp2", "geometric", iv, 16, opts),
		RunKey("exp2", "geometric", iv, 16, capped))
}
