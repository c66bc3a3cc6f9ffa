package generator

import (
	"sort"

	"bf16lut/pkg/bf16"
	"bf16lut/pkg/common"
	"bf16lut/pkg/core/partition"
	"bf16lut/pkg/model"
)

// Table is the result of one generation run. Entries are ordered by index
// and never modified after Generate returns.
type Table struct {
	Function string           `msgpack:"f" json:"function"`
	Policy   partition.Policy `msgpack:"p" json:"policy"`
	Interval common.Interval  `msgpack:"iv" json:"interval"`
	Entries  []common.Entry   `msgpack:"e" json:"entries"`

	// Bins holds the fitted point sets. It is not archived; Resample
	// rebuilds it for a decoded table.
	Bins []partition.Bin `msgpack:"-" json:"-"`
}

type DiagnosticPoint struct {
	Bin    int     `json:"bin"`
	X      float64 `json:"x"`
	Truth  float64 `json:"y_true"`
	Approx float64 `json:"y_hat"`
	Ulp    float64 `json:"ulp"`
}

func (t *Table) Size() int {
	return len(t.Entries)
}

func (t *Table) LUT() *model.LUT {
	return model.NewLUT(t.Interval, t.Entries)
}

// Index is the constant-time lookup formula over the real interval.
func (t *Table) Index(x float64) int {
	return model.BinIndex(x, t.Interval, len(t.Entries))
}

// Eval is what a consumer computes: formula lookup, a*x+b, bf16 rounding.
func (t *Table) Eval(x float64) float64 {
	e := &t.Entries[t.Index(x)]
	return bf16.Quantize(e.Slope*x + e.Intercept)
}

// Locate returns the entry whose coefficients were fitted for x. For
// geometric tables this is the formula bin; for equal-count tables it is the
// last entry starting at or below x.
func (t *Table) Locate(x float64) (common.Entry, bool) {
	if len(t.Entries) == 0 || x < t.Interval.Start || x > t.Interval.End {
		return common.Entry{}, false
	}
	if t.Policy == partition.Geometric {
		return t.Entries[t.Index(x)], true
	}
	i := sort.Search(len(t.Entries), func(i int) bool {
		return t.Entries[i].DomainStart > x
	})
	if i == 0 {
		return t.Entries[0], true
	}
	return t.Entries[i-1], true
}

// ServedError is the worst ULP error over every fitted point when routed the
// way a consumer routes: formula bin, then that bin's line. For geometric
// tables it equals WorstError. Bins must be populated.
func (t *Table) ServedError() float64 {
	lut := t.LUT()
	worst := 0.0
	for _, b := range t.Bins {
		if b.Synthetic {
			continue
		}
		worst = max(worst, model.MaxError(model.ScorePredictor(b.Points, lut)))
	}
	return worst
}

// WorstError is the largest per-bin max error.
func (t *Table) WorstError() float64 {
	worst := 0.0
	for _, e := range t.Entries {
		worst = max(worst, e.MaxError)
	}
	return worst
}

// MeanError is the mean over bins of the per-bin average error.
func (t *Table) MeanError() float64 {
	if len(t.Entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range t.Entries {
		sum += e.AvgError
	}
	return sum / float64(len(t.Entries))
}

// AvgMaxError is the mean over bins of the per-bin max error.
func (t *Table) AvgMaxError() float64 {
	if len(t.Entries) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range t.Entries {
		sum += e.MaxError
	}
	return sum / float64(len(t.Entries))
}

// Resample rebuilds Bins from the table parameters.
func (t *Table) Resample() error {
	tf, err := Lookup(t.Function)
	if err != nil {
		return err
	}
	bins, err := partition.Split(t.Policy, t.Interval, len(t.Entries), tf.Eval)
	if err != nil {
		return err
	}
	t.Bins = bins
	return nil
}

// Diagnostics scores every fitted point against its own bin's coefficients.
// Synthetic midpoint samples are skipped.
func (t *Table) Diagnostics() ([]DiagnosticPoint, error) {
	if t.Bins == nil {
		if err := t.Resample(); err != nil {
			return nil, err
		}
	}

	var out []DiagnosticPoint
	for _, b := range t.Bins {
		if b.Synthetic {
			continue
		}
		e := t.Entries[b.Index]
		errs := model.Score(b.Points, e.Slope, e.Intercept)
		for i, p := range b.Points {
			out = append(out, DiagnosticPoint{
				Bin:    b.Index,
				X:      p.X,
				Truth:  p.Y,
				Approx: bf16.Quantize(e.Slope*p.X + e.Intercept),
				Ulp:    errs[i],
			})
		}
	}
	return out, nil
}
