package bf16

import (
	"math"

	"bf16lut/pkg/common"
)

type rangeKind int

const (
	rangePositive rangeKind = iota // start >= 0
	rangeNegative                  // end <= 0
	rangeMixed                     // start < 0 < end
)

func classify(iv common.Interval) rangeKind {
	switch {
	case iv.Start >= 0:
		return rangePositive
	case iv.End <= 0:
		return rangeNegative
	default:
		return rangeMixed
	}
}

// Enumerate lists every finite bf16 value v with iv.Start <= v <= iv.End,
// strictly increasing. Zero appears once. The caller is responsible for
// iv.Start < iv.End; an empty result means the interval holds no bf16 value.
func Enumerate(iv common.Interval) []float64 {
	switch classify(iv) {
	case rangePositive:
		return enumeratePositive(iv.Start, iv.End)
	case rangeNegative:
		return enumerateNegative(iv.Start, iv.End)
	default:
		neg := enumerateNegative(iv.Start, math.Copysign(0, -1))
		pos := enumeratePositive(0, iv.End)
		// -0 and +0 are the same value; keep the positive one.
		if n := len(neg); n > 0 && neg[n-1] == 0 {
			neg = neg[:n-1]
		}
		return append(neg, pos...)
	}
}

// enumeratePositive walks bit patterns upward from the first aligned pattern
// at or above start. On the non-negative side pattern order is value order.
func enumeratePositive(start, end float64) []float64 {
	startBits := math.Float32bits(float32(start))
	if start == 0 {
		startBits = 0 // -0 has the sign bit set
	}
	// Carried in 64 bits so the alignment and stepping cannot wrap.
	bits := (uint64(startBits) + uint64(lowMask)) &^ uint64(lowMask)

	var values []float64
	for ; bits < uint64(f32ExpMask); bits += uint64(Step) {
		v := float64(math.Float32frombits(uint32(bits)))
		if v > end {
			break
		}
		if v >= start {
			values = append(values, v)
		}
	}
	return values
}

// enumerateNegative walks from the least negative aligned pattern towards
// larger magnitudes. With the sign bit set, a larger pattern is a more
// negative value, so the walk runs backwards in value and is reversed at the end.
func enumerateNegative(start, end float64) []float64 {
	endBits := math.Float32bits(float32(end))
	if end == 0 {
		endBits = f32SignMask
	}
	// Clearing low bits shrinks the magnitude, i.e. moves towards zero.
	bits := uint64(endBits &^ lowMask)
	limit := uint64(f32SignMask | f32ExpMask)

	var values []float64
	for ; bits < limit; bits += uint64(Step) {
		v := float64(math.Float32frombits(uint32(bits)))
		if v < start {
			break
		}
		if v <= end {
			if v == 0 {
				v = 0 // report -0 as +0
			}
			values = append(values, v)
		}
	}
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
	return values
}
