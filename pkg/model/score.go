package model

import (
	"math"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/common"
)

// Score returns, for every point, the bf16 output error of slope*x+intercept
// in ULPs of the true value: |Quantize(a*x+b) - y| / UlpStep(y).
// It has no side effects and is safe to call on every optimizer step.
func Score(points []common.Point, slope, intercept float64) []float64 {
	errs := make([]float64, len(points))
	for i, p := range points {
		errs[i] = ulpError(bf16.Quantize(slope*p.X+intercept), p.Y)
	}
	return errs
}

// ScorePredictor is Score for any Predictor.
func ScorePredictor(points []common.Point, p Predictor) []float64 {
	errs := make([]float64, len(points))
	for i, pt := range points {
		errs[i] = ulpError(bf16.Quantize(p.Predict(pt.X)), pt.Y)
	}
	return errs
}

func ulpError(approx, truth float64) float64 {
	diff := math.Abs(approx - truth)
	step := bf16.UlpStep(truth)
	if step == 0 || math.IsInf(step, 0) || math.IsNaN(step) {
		return diff
	}
	return diff / step
}

// MaxError is the largest score; NaN counts as +Inf. Empty input gives 0.
func MaxError(errs []float64) float64 {
	worst := 0.0
	for _, e := range errs {
		if math.IsNaN(e) {
			return math.Inf(1)
		}
		if e > worst {
			worst = e
		}
	}
	return worst
}

// MeanError is the arithmetic mean of the scores. Empty input gives 0.
func MeanError(errs []float64) float64 {
	if len(errs) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range errs {
		sum += e
	}
	return sum / float64(len(errs))
}
