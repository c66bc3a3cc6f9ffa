package model

import "bf16lut/pkg/common"

// LUT is the consumer-side view of a fitted table: a constant-time bin
// selection over the real interval followed by a per-bin line.
//
// Layer 1: idx = clamp(int((x - Start) / (End - Start) * N), 0, N-1), binary32
// Layer 2: Slopes[idx]*x + Intercepts[idx]
type LUT struct {
	Start      float64
	End        float64
	Slopes     []float64
	Intercepts []float64
}

func NewLUT(iv common.Interval, entries []common.Entry) *LUT {
	lut := &LUT{
		Start:      iv.Start,
		End:        iv.End,
		Slopes:     make([]float64, len(entries)),
		Intercepts: make([]float64, len(entries)),
	}
	for i, e := range entries {
		lut.Slopes[i] = e.Slope
		lut.Intercepts[i] = e.Intercept
	}
	return lut
}

func (lut *LUT) Size() int {
	return len(lut.Slopes)
}

// Index is the bin selection every consumer of the table must reproduce.
func (lut *LUT) Index(x float64) int {
	return BinIndex(x, common.Interval{Start: lut.Start, End: lut.End}, len(lut.Slopes))
}

func (lut *LUT) Predict(x float64) float64 {
	idx := lut.Index(x)
	return lut.Slopes[idx]*x + lut.Intercepts[idx]
}

// BinIndex computes clamp(int((x-Start)/(End-Start)*n), 0, n-1) in binary32,
// one rounding per operation, exactly as the emitted get_lut_index does. The
// geometric partition assigns its points with this same function, so fitting
// and lookup can never disagree about a point's bin.
func BinIndex(x float64, iv common.Interval, n int) int {
	start := float32(iv.Start)
	width := float32(float32(iv.End) - start)
	normalized := float32(float32(float32(x)-start) / width)
	pos := float32(normalized * float32(n))
	// Clamp before converting: out-of-range float to int conversion is undefined.
	switch {
	case pos != pos, pos < 0:
		return 0
	case pos >= float32(n):
		return n - 1
	}
	return int(pos)
}
