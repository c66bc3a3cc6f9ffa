package model

import (
	"bf16lut/pkg/common"
)

// LinearModel is an ordinary least-squares fit of y = Slope*x + Intercept.
type LinearModel struct {
	Slope     float64
	Intercept float64
	n         float64
	meanX     float64
	meanY     float64
	sxy       float64
	sxx       float64
}

func NewLinearModel() *LinearModel {
	return &LinearModel{}
}

// Train fits the model to points. The sums are taken about the means, which
// keeps narrow bins far from the origin well conditioned.
func (lm *LinearModel) Train(points []common.Point) {
	lm.n = float64(len(points))
	lm.meanX, lm.meanY, lm.sxy, lm.sxx = 0, 0, 0, 0
	if len(points) == 0 {
		lm.solve()
		return
	}

	for _, p := range points {
		lm.meanX += p.X
		lm.meanY += p.Y
	}
	lm.meanX /= lm.n
	lm.meanY /= lm.n

	for _, p := range points {
		dx := p.X - lm.meanX
		lm.sxy += dx * (p.Y - lm.meanY)
		lm.sxx += dx * dx
	}
	lm.solve()
}

// solve falls back to a constant line through the mean when x has no spread
// (a single sample, e.g. a synthetic midpoint).
func (lm *LinearModel) solve() {
	if lm.sxx == 0 {
		lm.Slope = 0
		lm.Intercept = lm.meanY
		return
	}
	lm.Slope = lm.sxy / lm.sxx
	lm.Intercept = lm.meanY - lm.Slope*lm.meanX
}

func (lm *LinearModel) Predict(x float64) float64 {
	return lm.Slope*x + lm.Intercept
}
