// Package optimizer implements derivative-free local minimizers for small
// parameter vectors: a Nelder-Mead simplex search and Powell's conjugate
// direction method. Neither needs gradients, so both cope with objectives that
// are piecewise constant or otherwise non-smooth.
package optimizer

import "math"

// Objective maps a parameter vector to the value being minimized.
type Objective func(x []float64) float64

type Options struct {
	MaxIter int
	// MaxEval caps objective evaluations; zero means unbounded.
	MaxEval int
	// XTol and FTol are absolute for NelderMead and relative for Powell.
	XTol float64
	FTol float64
}

type Result struct {
	X           []float64
	F           float64
	Iterations  int
	Evaluations int
	// Converged is false when an iteration or evaluation cap stopped the search.
	Converged bool
}

// counter wraps an objective, counts calls and maps NaN to +Inf so that
// comparisons stay total.
type counter struct {
	f     Objective
	calls int
}

func (c *counter) eval(x []float64) float64 {
	c.calls++
	v := c.f(x)
	if math.IsNaN(v) {
		return math.Inf(1)
	}
	return v
}

func (c *counter) exhausted(opts Options) bool {
	return opts.MaxEval > 0 && c.calls >= opts.MaxEval
}

func clone(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	return out
}
