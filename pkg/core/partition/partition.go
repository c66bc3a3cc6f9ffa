package partition

import (
	"math"
	"strings"

	"github.com/ansel1/merry"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/common"
	"bf16lut/pkg/model"
)

// Policy selects how the interval is cut into bins.
type Policy int

const (
	// Geometric cuts the real interval into equal-width sub-intervals, the
	// same cut the lookup index formula makes.
	Geometric Policy = iota
	// EqualCount cuts the sorted representable values into equally sized runs.
	EqualCount
)

func (p Policy) String() string {
	switch p {
	case Geometric:
		return "geometric"
	case EqualCount:
		return "equal-count"
	default:
		return "unknown"
	}
}

func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "geometric", "geo", "":
		return Geometric, nil
	case "equal-count", "equal_count", "equalcount", "count":
		return EqualCount, nil
	}
	return 0, common.ErrUnknownPolicy.WithValue("policy", s)
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Func is the target function sampled at every representable point.
type Func func(x float64) float64

// Bin is one cell of the partition. Lo and Hi are the reported domain
// bounds: first and last member for EqualCount, sub-interval edges for
// Geometric.
type Bin struct {
	Index  int
	Lo     float64
	Hi     float64
	Points []common.Point
	// Synthetic is set when Points holds only the midpoint sample of an
	// otherwise empty geometric bin.
	Synthetic bool
}

// Split partitions iv into n bins under policy, sampling fn at every bf16
// value in iv. Bins are returned in index order and are never empty.
func Split(policy Policy, iv common.Interval, n int, fn Func) ([]Bin, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, common.ErrInvalidBinCount.WithValue("bins", n)
	}

	xs := bf16.Enumerate(iv)
	if len(xs) == 0 {
		return nil, common.ErrNoRepresentable.WithValue("interval", iv.String())
	}

	switch policy {
	case EqualCount:
		return equalCount(xs, n, fn)
	case Geometric:
		return geometric(xs, iv, n, fn)
	}
	return nil, merry.Wrap(common.ErrUnknownPolicy).WithValue("policy", int(policy))
}

func equalCount(xs []float64, n int, fn Func) ([]Bin, error) {
	total := len(xs)
	if total < n {
		return nil, common.ErrTooFewPoints.
			WithValue("points", total).
			WithValue("bins", n)
	}

	size, rem := total/n, total%n
	bins := make([]Bin, n)
	pos := 0
	for i := range bins {
		k := size
		if i < rem {
			k++
		}
		chunk := xs[pos : pos+k]
		pos += k

		pts, err := sample(chunk, fn)
		if err != nil {
			return nil, err
		}
		bins[i] = Bin{
			Index:  i,
			Lo:     chunk[0],
			Hi:     chunk[len(chunk)-1],
			Points: pts,
		}
	}
	return bins, nil
}

func geometric(xs []float64, iv common.Interval, n int, fn Func) ([]Bin, error) {
	step := iv.Width() / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		hi := iv.Start + float64(i+1)*step
		if i == n-1 {
			hi = iv.End
		}
		bins[i] = Bin{Index: i, Lo: iv.Start + float64(i)*step, Hi: hi}
	}

	// Route with the lookup formula itself so a point is fitted in exactly
	// the bin that will later serve it.
	for _, x := range xs {
		pt, err := samplePoint(x, fn)
		if err != nil {
			return nil, err
		}
		b := &bins[model.BinIndex(x, iv, n)]
		b.Points = append(b.Points, pt)
	}

	for i := range bins {
		if len(bins[i].Points) > 0 {
			continue
		}
		mid := bins[i].Lo + (bins[i].Hi-bins[i].Lo)/2
		pt, err := samplePoint(mid, fn)
		if err != nil {
			return nil, err
		}
		bins[i].Points = []common.Point{pt}
		bins[i].Synthetic = true
	}
	return bins, nil
}

func sample(xs []float64, fn Func) ([]common.Point, error) {
	pts := make([]common.Point, len(xs))
	for i, x := range xs {
		pt, err := samplePoint(x, fn)
		if err != nil {
			return nil, err
		}
		pts[i] = pt
	}
	return pts, nil
}

// samplePoint evaluates fn at x. A value that has no finite bf16 rounding
// (NaN, infinite, or beyond the largest bf16) cannot be scored in ULPs and
// fails the run.
func samplePoint(x float64, fn Func) (common.Point, error) {
	y := fn(x)
	if q := bf16.Quantize(y); math.IsNaN(q) || math.IsInf(q, 0) {
		return common.Point{}, common.ErrNonFiniteTarget.WithValue("x", x).WithValue("y", y)
	}
	return common.Point{X: x, Y: y}, nil
}
