package emit

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/ansel1/merry"

	"bf16lut/pkg/core/generator"
)

func ff(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes one row per entry with a header row.
func WriteCSV(w io.Writer, t *generator.Table) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"index", "domain_start", "domain_end", "slope", "intercept",
		"max_ulp", "avg_ulp", "points", "synthetic"})
	for _, e := range t.Entries {
		cw.Write([]string{
			strconv.Itoa(e.Index),
			ff(e.DomainStart),
			ff(e.DomainEnd),
			ff(e.Slope),
			ff(e.Intercept),
			ff(e.MaxError),
			ff(e.AvgError),
			strconv.Itoa(e.Points),
			strconv.FormatBool(e.Synthetic),
		})
	}
	cw.Flush()
	return merry.Wrap(cw.Error())
}

// WriteDiagnosticsCSV writes per-point fit errors.
func WriteDiagnosticsCSV(w io.Writer, points []generator.DiagnosticPoint) error {
	cw := csv.NewWriter(w)
	cw.Write([]string{"bin", "x", "y_true", "y_hat", "ulp"})
	for _, p := range points {
		cw.Write([]string{strconv.Itoa(p.Bin), ff(p.X), ff(p.Truth), ff(p.Approx), ff(p.Ulp)})
	}
	cw.Flush()
	return merry.Wrap(cw.Error())
}
