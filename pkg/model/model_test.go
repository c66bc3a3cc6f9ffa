package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/common"
)

func exp2Points(iv common.Interval) []common.Point {
	xs := bf16.Enumerate(iv)
	pts := make([]common.Point, len(xs))
	for i, x := range xs {
		pts[i] = common.Point{X: x, Y: math.Exp2(x)}
	}
	return pts
}

func TestLinearModelTrain(t *testing.T) {
	lm := NewLinearModel()
	lm.Train([]common.Point{{X: 0, Y: 1}, {X: 1, Y: 3}, {X: 2, Y: 5}, {X: 3, Y: 7}})
	assert.InDelta(t, 2, lm.Slope, 1e-12)
	assert.InDelta(t, 1, lm.Intercept, 1e-12)
	assert.InDelta(t, 11, lm.Predict(5), 1e-12)
}

func TestLinearModelSinglePoint(t *testing.T) {
	lm := NewLinearModel()
	lm.Train([]common.Point{{X: 0.7, Y: 1.6}})
	assert.Equal(t, 0.0, lm.Slope)
	assert.Equal(t, 1.6, lm.Intercept)
}

func TestScore(t *testing.T) {
	pts := []common.Point{{X: 0, Y: 1}, {X: 0.5, Y: 2}, {X: 1, Y: 3}}

	errs := Score(pts, 2, 1)
	assert.Equal(t, []float64{0, 0, 0}, errs)

	// One bf16 step above 1.0 is exactly one ULP at y=1.
	errs = Score(pts[:1], 0, 1+math.Ldexp(1, -7))
	assert.Equal(t, []float64{1}, errs)

	// Output rounding is part of the score: a quarter step rounds away.
	errs = Score(pts[:1], 0, 1+math.Ldexp(1, -9))
	assert.Equal(t, []float64{0}, errs)
}

func TestScoreGuardsZeroTruth(t *testing.T) {
	errs := Score([]common.Point{{X: 1, Y: 0}}, 0, 0)
	assert.Equal(t, []float64{0}, errs)
	errs = Score([]common.Point{{X: 1, Y: math.Inf(1)}}, 0, 1)
	assert.True(t, math.IsInf(errs[0], 1))
}

func TestScorePredictorMatchesScore(t *testing.T) {
	pts := exp2Points(common.Interval{Start: 0.25, End: 0.3})
	lm := &LinearModel{Slope: 0.9, Intercept: 0.95}
	assert.Equal(t, Score(pts, 0.9, 0.95), ScorePredictor(pts, lm))
}

func TestMaxAndMeanError(t *testing.T) {
	assert.Equal(t, 0.0, MaxError(nil))
	assert.Equal(t, 0.0, MeanError(nil))
	assert.Equal(t, 3.0, MaxError([]float64{1, 3, 2}))
	assert.Equal(t, 2.0, MeanError([]float64{1, 3, 2}))
	assert.True(t, math.IsInf(MaxError([]float64{1, math.NaN()}), 1))
}

func TestFitMinimaxImprovesOnSeed(t *testing.T) {
	pts := exp2Points(common.Interval{Start: 0.25, End: 0.265625})
	require.Len(t, pts, 9)

	seed := NewLinearModel()
	seed.Train(pts)
	seedErr := MaxError(Score(pts, seed.Slope, seed.Intercept))

	fit := FitMinimax(pts, DefaultFitOptions())
	assert.LessOrEqual(t, fit.MaxError, seedErr)
	assert.LessOrEqual(t, fit.MaxError, 0.6)
	assert.Greater(t, fit.Evaluations, 0)
	assert.Contains(t, []Phase{PhaseSimplex, PhaseCoordinate}, fit.Phase)
}

func TestFitMinimaxReportsOwnError(t *testing.T) {
	pts := exp2Points(common.Interval{Start: -1, End: -0.5})
	fit := FitMinimax(pts, DefaultFitOptions())

	errs := Score(pts, fit.Slope, fit.Intercept)
	assert.Equal(t, MaxError(errs), fit.MaxError)
	assert.Equal(t, MeanError(errs), fit.AvgError)
	assert.LessOrEqual(t, fit.AvgError, fit.MaxError)
}

func TestFitMinimaxSinglePoint(t *testing.T) {
	pts := []common.Point{{X: 0.3, Y: math.Exp2(0.3)}}
	fit := FitMinimax(pts, DefaultFitOptions())
	assert.LessOrEqual(t, fit.MaxError, 0.5)
}

func TestFitOptionsDefaults(t *testing.T) {
	o := FitOptions{}.withDefaults()
	assert.Equal(t, DefaultFitOptions(), o)

	o = FitOptions{}
	o.Simplex.MaxIter = 50
	o = o.withDefaults()
	assert.Equal(t, 50, o.Simplex.MaxIter)
	assert.Equal(t, 1e-12, o.Simplex.XTol)
}

func TestBinIndex(t *testing.T) {
	iv := common.Interval{Start: 1, End: 2}
	cases := []struct {
		x    float64
		want int
	}{
		{1.9, 3},
		{1.75, 3},
		{1.7, 2},
		{1.25, 1},
		{1, 0},
		{2, 3},
		{0.5, 0},
		{3, 3},
		{math.Inf(1), 3},
		{math.Inf(-1), 0},
		{math.NaN(), 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, BinIndex(tc.x, iv, 4), "x=%g", tc.x)
	}
}

func TestLUTPredict(t *testing.T) {
	entries := []common.Entry{
		{Index: 0, Slope: 1, Intercept: 0},
		{Index: 1, Slope: 2, Intercept: -1},
	}
	lut := NewLUT(common.Interval{Start: 0, End: 2}, entries)
	assert.Equal(t, 2, lut.Size())
	assert.Equal(t, 0, lut.Index(0.5))
	assert.Equal(t, 1, lut.Index(1.5))
	assert.Equal(t, 0.5, lut.Predict(0.5))
	assert.Equal(t, 2.0, lut.Predict(1.5))
}
