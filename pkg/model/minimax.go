package model

import (
	"bf16lut/pkg/common"
	"bf16lut/pkg/optimizer"
)

// Phase names the refinement step whose coefficients were kept.
type Phase int

const (
	PhaseSimplex Phase = iota + 2
	PhaseCoordinate
)

func (p Phase) String() string {
	switch p {
	case PhaseSimplex:
		return "simplex"
	case PhaseCoordinate:
		return "coordinate"
	default:
		return "unknown"
	}
}

// FitOptions bounds the two refinement phases. Zero fields take defaults.
type FitOptions struct {
	Simplex    optimizer.Options
	Coordinate optimizer.Options
}

func DefaultFitOptions() FitOptions {
	return FitOptions{
		Simplex:    optimizer.Options{MaxIter: 10000, XTol: 1e-12, FTol: 1e-12},
		Coordinate: optimizer.Options{MaxIter: 10000, XTol: 1e-14, FTol: 1e-14},
	}
}

func (o FitOptions) withDefaults() FitOptions {
	def := DefaultFitOptions()
	fill := func(dst *optimizer.Options, src optimizer.Options) {
		if dst.MaxIter <= 0 {
			dst.MaxIter = src.MaxIter
		}
		if dst.XTol <= 0 {
			dst.XTol = src.XTol
		}
		if dst.FTol <= 0 {
			dst.FTol = src.FTol
		}
	}
	fill(&o.Simplex, def.Simplex)
	fill(&o.Coordinate, def.Coordinate)
	return o
}

// Fit is the outcome of FitMinimax. MaxError and AvgError are the max and
// mean of Score at exactly (Slope, Intercept).
type Fit struct {
	Slope       float64
	Intercept   float64
	MaxError    float64
	AvgError    float64
	Phase       Phase
	Evaluations int
	// Converged reports whether the kept phase stopped on its tolerances.
	Converged bool
}

// FitMinimax searches for the line minimizing the worst ULP error over points.
//
// The least-squares line seeds a Nelder-Mead search on max(Score); a Powell
// search then continues from the simplex result. The better of the two is
// kept, the later one on a tie. This is a bounded local search: the result is
// the best found, not a certified optimum. points must not be empty.
func FitMinimax(points []common.Point, opts FitOptions) Fit {
	opts = opts.withDefaults()

	objective := func(c []float64) float64 {
		return MaxError(Score(points, c[0], c[1]))
	}

	seed := NewLinearModel()
	seed.Train(points)

	simplex := optimizer.NelderMead(objective, []float64{seed.Slope, seed.Intercept}, opts.Simplex)
	coord := optimizer.Powell(objective, simplex.X, opts.Coordinate)

	best, phase := coord, PhaseCoordinate
	if simplex.F < coord.F {
		best, phase = simplex, PhaseSimplex
	}

	errs := Score(points, best.X[0], best.X[1])
	return Fit{
		Slope:       best.X[0],
		Intercept:   best.X[1],
		MaxError:    MaxError(errs),
		AvgError:    MeanError(errs),
		Phase:       phase,
		Evaluations: simplex.Evaluations + coord.Evaluations,
		Converged:   best.Converged,
	}
}
