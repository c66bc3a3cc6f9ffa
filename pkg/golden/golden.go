package golden

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/ansel1/merry"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/core/generator"
)

// Pair is one line of a golden file: an input pattern and the pattern the
// kernel produced for it.
type Pair struct {
	In  bf16.BF16
	Out bf16.BF16
}

func (p Pair) X() float64 { return p.In.Float64() }
func (p Pair) Y() float64 { return p.Out.Float64() }

func (p Pair) Finite() bool {
	return p.In.IsFinite() && p.Out.IsFinite()
}

// Precision selects the arithmetic Replay evaluates a*x+b in.
type Precision int

const (
	// Binary32 is the emitted <fn>_approx: float coefficients, float product
	// and sum.
	Binary32 Precision = iota
	// Binary64 promotes the float coefficients to double before a*x+b, as a
	// double-precision reference harness does.
	Binary64
)

func (p Precision) String() string {
	if p == Binary64 {
		return "binary64"
	}
	return "binary32"
}

// ParsePrecision accepts "binary32"/"float"/"single" and
// "binary64"/"double". Empty selects Binary32.
func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "binary32", "float", "single", "32":
		return Binary32, nil
	case "binary64", "double", "64":
		return Binary64, nil
	}
	return 0, merry.Errorf("golden: unknown precision %q", s).WithHTTPCode(http.StatusBadRequest)
}

// Replay is ReplayWith at Binary32.
func Replay(w io.Writer, t *generator.Table) (int, error) {
	return ReplayWith(w, t, Binary32)
}

// ReplayWith evaluates t the way a consumer does for every bf16 pattern
// inside the binary32 interval bounds: index through the table formula,
// float32 coefficients, a*x+b at prec, RNE to bf16. It writes
// "HEX_IN HEX_OUT" lines in pattern order and returns the number of lines.
func ReplayWith(w io.Writer, t *generator.Table, prec Precision) (int, error) {
	if len(t.Entries) == 0 {
		return 0, merry.New("golden: table has no entries")
	}
	slopes := make([]float32, len(t.Entries))
	intercepts := make([]float32, len(t.Entries))
	for i, e := range t.Entries {
		slopes[i] = float32(e.Slope)
		intercepts[i] = float32(e.Intercept)
	}
	lo := float64(float32(t.Interval.Start))
	hi := float64(float32(t.Interval.End))

	bw := bufio.NewWriter(w)
	n := 0
	for p := 0; p <= 0xFFFF; p++ {
		in := bf16.BF16(p)
		if !in.IsFinite() {
			continue
		}
		x := in.Float64()
		if x < lo || x > hi {
			continue
		}
		idx := t.Index(x)

		var y float64
		if prec == Binary64 {
			y = float64(float64(slopes[idx])*x) + float64(intercepts[idx])
		} else {
			x32 := float32(x)
			// Explicit conversion keeps the product rounded before the add.
			y = float64(float32(slopes[idx]*x32) + intercepts[idx])
		}
		out := bf16.FromFloat64(y)
		if _, err := fmt.Fprintf(bw, "%04X %04X\n", in.Bits(), out.Bits()); err != nil {
			return n, merry.Wrap(err)
		}
		n++
	}
	return n, merry.Wrap(bw.Flush())
}

// ReadStats counts what Read saw.
type ReadStats struct {
	Lines       int `json:"lines"`
	Skipped     int `json:"skipped"`
	ParseErrors int `json:"parse_errors"`
}

// Read parses golden lines. Empty lines and lines starting with '#' or '/'
// are skipped; malformed lines are counted, not fatal.
func Read(r io.Reader) ([]Pair, ReadStats, error) {
	var pairs []Pair
	var st ReadStats

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		st.Lines++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '/' {
			st.Skipped++
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			st.ParseErrors++
			continue
		}
		in, err1 := strconv.ParseUint(fields[0], 16, 16)
		out, err2 := strconv.ParseUint(fields[1], 16, 16)
		if err1 != nil || err2 != nil {
			st.ParseErrors++
			continue
		}
		pairs = append(pairs, Pair{In: bf16.BF16(in), Out: bf16.BF16(out)})
	}
	return pairs, st, merry.Wrap(sc.Err())
}

// Finite keeps the pairs whose input and output are both finite.
func Finite(pairs []Pair) []Pair {
	out := make([]Pair, 0, len(pairs))
	for _, p := range pairs {
		if p.Finite() {
			out = append(out, p)
		}
	}
	return out
}

// UlpError is |got - ref| in bf16 steps at ref. NaN anywhere is NaN; an
// infinite reference matches only the same infinity.
func UlpError(ref, got float64) float64 {
	switch {
	case math.IsNaN(ref) || math.IsNaN(got):
		return math.NaN()
	case math.IsInf(ref, 0):
		if got == ref {
			return 0
		}
		return math.Inf(1)
	case math.IsInf(got, 0):
		return math.Inf(1)
	}
	return math.Abs(got-ref) / bf16.UlpStep(ref)
}

// Report summarises the ULP error over a set of pairs. Only finite errors
// contribute to MaxUlp and MeanUlp.
type Report struct {
	Count    int       `json:"count"`
	Valid    int       `json:"valid"`
	MaxUlp   float64   `json:"max_ulp"`
	MaxInput bf16.BF16 `json:"max_input"`
	MeanUlp  float64   `json:"mean_ulp"`
}

func (r *Report) add(p Pair, ulp float64) {
	r.Count++
	if math.IsNaN(ulp) || math.IsInf(ulp, 0) {
		return
	}
	if ulp > r.MaxUlp {
		r.MaxUlp = ulp
		r.MaxInput = p.In
	}
	r.MeanUlp += ulp
	r.Valid++
}

func (r *Report) finish() {
	if r.Valid > 0 {
		r.MeanUlp /= float64(r.Valid)
	}
}

// Analyze scores every pair against fn evaluated in double precision.
func Analyze(pairs []Pair, fn func(float64) float64) Report {
	var r Report
	for _, p := range pairs {
		r.add(p, UlpError(fn(p.X()), p.Y()))
	}
	r.finish()
	return r
}

// WriteAnnotated writes "HEX_IN HEX_OUT ULP" lines and returns the same
// report Analyze would.
func WriteAnnotated(w io.Writer, pairs []Pair, fn func(float64) float64) (Report, error) {
	var r Report
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		ulp := UlpError(fn(p.X()), p.Y())
		r.add(p, ulp)

		var s string
		switch {
		case math.IsNaN(ulp):
			s = "NaN"
		case math.IsInf(ulp, 0):
			s = "Inf"
		default:
			s = strconv.FormatFloat(ulp, 'f', 4, 64)
		}
		if _, err := fmt.Fprintf(bw, "%04X %04X %s\n", p.In.Bits(), p.Out.Bits(), s); err != nil {
			return r, merry.Wrap(err)
		}
	}
	r.finish()
	return r, merry.Wrap(bw.Flush())
}

// ExportSorted writes the finite pairs as "x,y" CSV rows ordered by x, the
// input a plotting tool needs. Pattern order is not value order.
func ExportSorted(w io.Writer, pairs []Pair) (int, error) {
	pts := Finite(pairs)
	sort.SliceStable(pts, func(i, j int) bool {
		return pts[i].X() < pts[j].X()
	})

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("x,y\n"); err != nil {
		return 0, merry.Wrap(err)
	}
	for _, p := range pts {
		fmt.Fprintf(bw, "%s,%s\n",
			strconv.FormatFloat(p.X(), 'g', -1, 32),
			strconv.FormatFloat(p.Y(), 'g', -1, 32))
	}
	return len(pts), merry.Wrap(bw.Flush())
}
