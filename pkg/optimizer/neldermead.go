package optimizer

import (
	"math"
	"sort"
)

const (
	nmReflect  = 1.0
	nmExpand   = 2.0
	nmContract = 0.5
	nmShrink   = 0.5

	nmNonzeroDelta = 0.05
	nmZeroDelta    = 0.00025
)

// NelderMead minimizes f from x0 with the downhill simplex method.
//
// The initial simplex perturbs each coordinate of x0 in turn: non-zero
// coordinates by 5%, zero ones by 0.00025. The search stops when both the
// simplex diameter (max abs coordinate spread to the best vertex) is within
// opts.XTol and the value spread is within opts.FTol, or a cap is hit.
func NelderMead(f Objective, x0 []float64, opts Options) Result {
	c := &counter{f: f}
	n := len(x0)

	sim := make([][]float64, n+1)
	fsim := make([]float64, n+1)
	sim[0] = clone(x0)
	for k := 0; k < n; k++ {
		y := clone(x0)
		if y[k] != 0 {
			y[k] *= 1 + nmNonzeroDelta
		} else {
			y[k] = nmZeroDelta
		}
		sim[k+1] = y
	}
	for i := range sim {
		fsim[i] = c.eval(sim[i])
	}
	sortSimplex(sim, fsim)

	xbar := make([]float64, n)
	point := func(a float64, p []float64, b float64, q []float64) []float64 {
		out := make([]float64, n)
		for j := range out {
			out[j] = a*p[j] + b*q[j]
		}
		return out
	}

	iterations := 1
	converged := false
	for iterations < opts.MaxIter && !c.exhausted(opts) {
		if simplexConverged(sim, fsim, opts) {
			converged = true
			break
		}
		// Every vertex is +Inf: no move can be ranked, so the search has stalled.
		if math.IsInf(fsim[0], 1) {
			break
		}

		for j := range xbar {
			xbar[j] = 0
			for i := 0; i < n; i++ {
				xbar[j] += sim[i][j]
			}
			xbar[j] /= float64(n)
		}
		worst := sim[n]

		xr := point(1+nmReflect, xbar, -nmReflect, worst)
		fxr := c.eval(xr)
		shrink := false

		switch {
		case fxr < fsim[0]:
			xe := point(1+nmReflect*nmExpand, xbar, -nmReflect*nmExpand, worst)
			fxe := c.eval(xe)
			if fxe < fxr {
				sim[n], fsim[n] = xe, fxe
			} else {
				sim[n], fsim[n] = xr, fxr
			}
		case fxr < fsim[n-1]:
			sim[n], fsim[n] = xr, fxr
		case fxr < fsim[n]:
			// outside contraction
			xc := point(1+nmContract*nmReflect, xbar, -nmContract*nmReflect, worst)
			fxc := c.eval(xc)
			if fxc <= fxr {
				sim[n], fsim[n] = xc, fxc
			} else {
				shrink = true
			}
		default:
			// inside contraction
			xcc := point(1-nmContract, xbar, nmContract, worst)
			fxcc := c.eval(xcc)
			if fxcc < fsim[n] {
				sim[n], fsim[n] = xcc, fxcc
			} else {
				shrink = true
			}
		}

		if shrink {
			for i := 1; i <= n; i++ {
				sim[i] = point(1-nmShrink, sim[0], nmShrink, sim[i])
				fsim[i] = c.eval(sim[i])
			}
		}

		iterations++
		sortSimplex(sim, fsim)
	}
	if !converged {
		converged = simplexConverged(sim, fsim, opts)
	}

	return Result{
		X:           clone(sim[0]),
		F:           fsim[0],
		Iterations:  iterations,
		Evaluations: c.calls,
		Converged:   converged,
	}
}

func simplexConverged(sim [][]float64, fsim []float64, opts Options) bool {
	var dx, df float64
	for i := 1; i < len(sim); i++ {
		for j := range sim[i] {
			dx = math.Max(dx, math.Abs(sim[i][j]-sim[0][j]))
		}
		df = math.Max(df, math.Abs(fsim[0]-fsim[i]))
	}
	return dx <= opts.XTol && df <= opts.FTol
}

// sortSimplex orders vertices by value, best first. The sort is stable so
// equal values keep their previous order.
func sortSimplex(sim [][]float64, fsim []float64) {
	idx := make([]int, len(sim))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return fsim[idx[a]] < fsim[idx[b]] })

	s := make([][]float64, len(sim))
	fs := make([]float64, len(fsim))
	for i, k := range idx {
		s[i], fs[i] = sim[k], fsim[k]
	}
	copy(sim, s)
	copy(fsim, fs)
}
