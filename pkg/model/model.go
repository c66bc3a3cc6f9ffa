package model

// Predictor evaluates an approximation at x before any output rounding.
type Predictor interface {
	Predict(x float64) float64
}
