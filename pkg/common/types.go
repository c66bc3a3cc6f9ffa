package common

import "fmt"

// Interval is a closed real range [Start, End]. Start < End is required.
type Interval struct {
	Start float64 `msgpack:"s" json:"start" yaml:"start"`
	End   float64 `msgpack:"e" json:"end" yaml:"end"`
}

// NormalizeInterval orders the two bounds. The core never does this itself.
func NormalizeInterval(a, b float64) Interval {
	if a > b {
		a, b = b, a
	}
	return Interval{Start: a, End: b}
}

func (iv Interval) Validate() error {
	if !(iv.Start < iv.End) {
		return ErrInvalidInterval.WithValue("start", iv.Start).WithValue("end", iv.End)
	}
	return nil
}

func (iv Interval) Width() float64 {
	return iv.End - iv.Start
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%g, %g]", iv.Start, iv.End)
}

// Point is one sample of the target function.
type Point struct {
	X float64
	Y float64
}

// Entry is one fitted bin of the table.
type Entry struct {
	Index       int     `msgpack:"i" json:"index"`
	DomainStart float64 `msgpack:"ds" json:"domain_start"`
	DomainEnd   float64 `msgpack:"de" json:"domain_end"`
	Slope       float64 `msgpack:"a" json:"slope"`
	Intercept   float64 `msgpack:"b" json:"intercept"`
	MaxError    float64 `msgpack:"mx" json:"max_error"`
	AvgError    float64 `msgpack:"av" json:"avg_error"`
	Points      int     `msgpack:"n" json:"points"`
	Synthetic   bool    `msgpack:"sy" json:"synthetic,omitempty"`
}

func (e *Entry) String() string {
	return fmt.Sprintf("Entry{%d: [%.6f, %.6f] a=%.10e b=%.10e max_ulp=%.4f avg_ulp=%.4f}",
		e.Index, e.DomainStart, e.DomainEnd, e.Slope, e.Intercept, e.MaxError, e.AvgError)
}
