package optimizer

import "math"

const (
	goldRatio     = 1.618034
	goldR         = 0.61803399
	goldC         = 1 - goldR
	growLimit     = 110.0
	tinyDenom     = 1e-21
	bracketIter   = 1000
	goldenIter    = 500
	powellFloor   = 1e-20
	lineTolFactor = 100
)

// Powell minimizes f from x0 with Powell's conjugate direction method. The
// initial directions are the coordinate axes; each sweep line-searches along
// every direction and then replaces the direction of largest decrease by the
// net displacement of the sweep when that is expected to help.
//
// The search stops when a sweep improves f by less than the relative
// tolerance opts.FTol. Line searches bracket a minimum and then shrink the
// bracket by golden section to relative width 100*opts.XTol.
func Powell(f Objective, x0 []float64, opts Options) Result {
	c := &counter{f: f}
	n := len(x0)

	direc := make([][]float64, n)
	for i := range direc {
		direc[i] = make([]float64, n)
		direc[i][i] = 1
	}
	lineTol := opts.XTol * lineTolFactor

	x := clone(x0)
	x1 := clone(x0)
	fval := c.eval(x)

	iterations := 0
	converged := false
	for {
		fx := fval
		bigind := 0
		delta := 0.0
		for i := 0; i < n; i++ {
			fx2 := fval
			x, fval, _ = lineSearch(c, x, fval, direc[i], lineTol)
			if fx2-fval > delta {
				delta = fx2 - fval
				bigind = i
			}
		}
		iterations++

		if math.IsInf(fx, 1) && math.IsInf(fval, 1) {
			break
		}
		if 2*(fx-fval) <= opts.FTol*(math.Abs(fx)+math.Abs(fval))+powellFloor {
			converged = true
			break
		}
		if c.exhausted(opts) || iterations >= opts.MaxIter {
			break
		}

		// Extrapolate along the net displacement of this sweep.
		d := make([]float64, n)
		x2 := make([]float64, n)
		for j := range x {
			d[j] = x[j] - x1[j]
			x2[j] = 2*x[j] - x1[j]
		}
		x1 = clone(x)
		fx2 := c.eval(x2)

		if fx > fx2 {
			t := 2 * (fx + fx2 - 2*fval)
			tmp := fx - fval - delta
			t *= tmp * tmp
			tmp = fx - fx2
			t -= delta * tmp * tmp
			if t < 0 {
				x, fval, d = lineSearch(c, x, fval, d, lineTol)
				if !allZero(d) {
					direc[bigind] = direc[n-1]
					direc[n-1] = d
				}
			}
		}
	}

	return Result{
		X:           x,
		F:           fval,
		Iterations:  iterations,
		Evaluations: c.calls,
		Converged:   converged,
	}
}

// lineSearch minimizes along dir starting at x (whose value is fx). It returns
// the new point, its value and the displacement actually taken. The result is
// never worse than fx.
func lineSearch(c *counter, x []float64, fx float64, dir []float64, tol float64) ([]float64, float64, []float64) {
	if allZero(dir) {
		return x, fx, dir
	}
	at := func(alpha float64) []float64 {
		p := make([]float64, len(x))
		for j := range p {
			p[j] = x[j] + alpha*dir[j]
		}
		return p
	}
	g := func(alpha float64) float64 {
		if alpha == 0 {
			return fx
		}
		return c.eval(at(alpha))
	}

	xa, xb, xc, fa, fb, fc := bracket(g)
	alpha, falpha := golden(g, xa, xb, xc, fa, fb, fc, tol)
	if !(falpha < fx) {
		return x, fx, make([]float64, len(dir))
	}

	step := make([]float64, len(dir))
	for j := range step {
		step[j] = alpha * dir[j]
	}
	return at(alpha), falpha, step
}

// bracket expands downhill from [0, 1] until it holds a triple
// xa, xb, xc with f(xb) <= f(xa) and f(xb) <= f(xc), using parabolic
// extrapolation with a growth limit.
func bracket(g func(float64) float64) (xa, xb, xc, fa, fb, fc float64) {
	xa, xb = 0, 1
	fa, fb = g(xa), g(xb)
	if fa < fb {
		xa, xb = xb, xa
		fa, fb = fb, fa
	}
	xc = xb + goldRatio*(xb-xa)
	fc = g(xc)

	for iter := 0; fc < fb && iter < bracketIter; iter++ {
		tmp1 := (xb - xa) * (fb - fc)
		tmp2 := (xb - xc) * (fb - fa)
		val := tmp2 - tmp1
		denom := 2 * val
		if math.Abs(val) < tinyDenom {
			denom = 2 * tinyDenom
		}
		w := xb - ((xb-xc)*tmp2-(xb-xa)*tmp1)/denom
		wlim := xb + growLimit*(xc-xb)

		var fw float64
		switch {
		case (w-xc)*(xb-w) > 0:
			fw = g(w)
			if fw < fc {
				return xb, w, xc, fb, fw, fc
			} else if fw > fb {
				return xa, xb, w, fa, fb, fw
			}
			w = xc + goldRatio*(xc-xb)
			fw = g(w)
		case (w-wlim)*(wlim-xc) >= 0:
			w = wlim
			fw = g(w)
		case (w-wlim)*(xc-w) > 0:
			fw = g(w)
			if fw < fc {
				xb, xc = xc, w
				w = xc + goldRatio*(xc-xb)
				fb, fc = fc, fw
				fw = g(w)
			}
		default:
			w = xc + goldRatio*(xc-xb)
			fw = g(w)
		}
		xa, xb, xc = xb, xc, w
		fa, fb, fc = fb, fc, fw
	}
	return xa, xb, xc, fa, fb, fc
}

// golden shrinks a bracket by golden section and returns the best abscissa
// seen together with its value.
func golden(g func(float64) float64, xa, xb, xc, fa, fb, fc, tol float64) (float64, float64) {
	x0, x3 := xa, xc
	var x1, x2 float64
	if math.Abs(xc-xb) > math.Abs(xb-xa) {
		x1 = xb
		x2 = xb + goldC*(xc-xb)
	} else {
		x2 = xb
		x1 = xb - goldC*(xb-xa)
	}
	f1, f2 := g(x1), g(x2)

	for i := 0; i < goldenIter; i++ {
		if math.Abs(x3-x0) <= tol*(math.Abs(x1)+math.Abs(x2))+powellFloor {
			break
		}
		if f2 < f1 {
			x0, x1 = x1, x2
			x2 = goldR*x1 + goldC*x3
			f1 = f2
			f2 = g(x2)
		} else {
			x3, x2 = x2, x1
			x1 = goldR*x2 + goldC*x0
			f2 = f1
			f1 = g(x1)
		}
	}

	best, fbest := x1, f1
	if f2 < f1 {
		best, fbest = x2, f2
	}
	// The bracket ends may still be better on a flat or stepped objective.
	for _, cand := range [...]struct{ x, f float64 }{{xa, fa}, {xb, fb}, {xc, fc}} {
		if cand.f < fbest {
			best, fbest = cand.x, cand.f
		}
	}
	return best, fbest
}

func allZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
