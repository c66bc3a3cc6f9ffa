package emit

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/ansel1/merry"

	"bf16lut/pkg/core/generator"
)

// HeaderOptions controls the C++ header text. Zero values derive names from
// the table's target function.
type HeaderOptions struct {
	Namespace string
	Guard     string
	// Generated is printed in the banner when set.
	Generated time.Time
}

type headerData struct {
	*generator.Table
	Namespace string
	Guard     string
	FuncName  string
	Generated string
	Worst     float64
	Average   float64
	Last      int
}

var headerFuncs = template.FuncMap{
	"cfloat": cFloat,
	"coeff":  func(v float64) string { return fmt.Sprintf("% .10e", v) },
	"fixed":  func(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) },
	"comma": func(i, last int) string {
		if i < last {
			return ","
		}
		return ""
	},
}

var headerTmpl = template.Must(template.New("header").Funcs(headerFuncs).Parse(`#ifndef {{.Guard}}
#define {{.Guard}}

#include <cstdint>

// =============================================================
// {{.Function}}(x) Linear Approximation Coefficients for BF16
// =============================================================
//
{{- if .Generated}}
// Generated: {{.Generated}}
{{- end}}
// Interval:  [{{cfloat .Interval.Start}}, {{cfloat .Interval.End}}]
// LUT Size:  {{len .Entries}}
// Policy:    {{.Policy}}
//
// Approximation: y = a * x + b
//
// Error Metrics (BF16 ULP):
//   Worst-case: {{fixed .Worst 6}} ULP
//   Average:    {{fixed .Average 6}} ULP
// =============================================================

namespace {{.Namespace}} {

constexpr int LUT_SIZE = {{len .Entries}};
constexpr float INTERVAL_START = {{cfloat .Interval.Start}}f;
constexpr float INTERVAL_END = {{cfloat .Interval.End}}f;

// Slope coefficients (a)
static const float coeffs_a[LUT_SIZE] = {
{{- range $i, $e := .Entries}}
    {{coeff $e.Slope}}f{{comma $i $.Last}}  // [{{fixed $e.DomainStart 6}}, {{fixed $e.DomainEnd 6}}] ulp={{fixed $e.MaxError 4}}
{{- end}}
};

// Intercept coefficients (b)
static const float coeffs_b[LUT_SIZE] = {
{{- range $i, $e := .Entries}}
    {{coeff $e.Intercept}}f{{comma $i $.Last}}
{{- end}}
};

/**
 * @brief Calculate LUT index from input value.
 *
 * @param x Input value in [{{cfloat .Interval.Start}}, {{cfloat .Interval.End}}]
 * @return int LUT index [0, {{.Last}}]
 */
inline int get_lut_index(float x) {
    float normalized = (x - INTERVAL_START) / (INTERVAL_END - INTERVAL_START);
    int idx = static_cast<int>(normalized * LUT_SIZE);
    // Clamp to valid range
    if (idx < 0) idx = 0;
    if (idx >= LUT_SIZE) idx = LUT_SIZE - 1;
    return idx;
}

/**
 * @brief Compute {{.Function}}(x) approximation using LUT.
 *
 * @param x Input value in [{{cfloat .Interval.Start}}, {{cfloat .Interval.End}}]
 * @return float Approximation of {{.Function}}(x)
 */
inline float {{.FuncName}}(float x) {
    int idx = get_lut_index(x);
    return coeffs_a[idx] * x + coeffs_b[idx];
}

} // namespace {{.Namespace}}

#endif // {{.Guard}}
`))

// WriteHeader renders t as a self-contained C++ header: the host table, the
// index function and the evaluation function.
func WriteHeader(w io.Writer, t *generator.Table, opts HeaderOptions) error {
	if len(t.Entries) == 0 {
		return merry.New("emit: table has no entries")
	}

	fn := sanitize(t.Function)
	data := headerData{
		Table:     t,
		Namespace: opts.Namespace,
		Guard:     opts.Guard,
		FuncName:  fn + "_approx",
		Worst:     t.WorstError(),
		Average:   t.MeanError(),
		Last:      len(t.Entries) - 1,
	}
	if data.Namespace == "" {
		data.Namespace = "bf16_" + fn
	}
	if data.Guard == "" {
		data.Guard = strings.ToUpper(data.Namespace) + "_COEFFS_HPP"
	}
	if !opts.Generated.IsZero() {
		data.Generated = opts.Generated.Format("2006-01-02 15:04:05")
	}
	return merry.Wrap(headerTmpl.Execute(w, data))
}

// cFloat formats v as the shortest decimal that reads back as float32(v),
// and is still a C++ floating literal once an 'f' suffix is appended. The
// compiled INTERVAL_START/END then equal the binary32 bounds model.BinIndex
// uses.
func cFloat(v float64) string {
	s := strconv.FormatFloat(float64(float32(v)), 'g', -1, 32)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}

func sanitize(name string) string {
	if name == "" {
		return generator.DefaultFunction
	}
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
