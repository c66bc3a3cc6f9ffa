package emit

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ansel1/merry"

	"bf16lut/pkg/core/generator"
)

// FixedFormat is an unsigned I.F fixed-point layout.
type FixedFormat struct {
	IntBits  int
	FracBits int
}

func DefaultFixedFormat() FixedFormat {
	return FixedFormat{IntBits: 1, FracBits: 25}
}

func (f FixedFormat) Width() int {
	return f.IntBits + f.FracBits
}

func (f FixedFormat) Validate() error {
	if f.IntBits < 0 || f.FracBits < 0 || f.Width() < 1 || 2*f.Width() > 64 {
		return merry.Errorf("emit: fixed format %d.%d does not pack into 64 bits", f.IntBits, f.FracBits)
	}
	return nil
}

// Quantize converts v to the format's raw bits: truncation toward negative
// infinity, then wrap-around to Width bits. Negative and oversized values
// wrap rather than saturate.
func (f FixedFormat) Quantize(v float64) uint64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	span := math.Ldexp(1, f.Width())
	r := math.Mod(math.Floor(math.Ldexp(v, f.FracBits)), span)
	if r < 0 {
		r += span
	}
	return uint64(r)
}

// Value is the real number a raw field represents.
func (f FixedFormat) Value(bits uint64) float64 {
	return math.Ldexp(float64(bits), -f.FracBits)
}

// PackCoefficients returns (b << W) | a per entry, with a and b quantized
// to f.
func PackCoefficients(t *generator.Table, f FixedFormat) ([]uint64, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	w := uint(f.Width())
	out := make([]uint64, len(t.Entries))
	for i, e := range t.Entries {
		out[i] = f.Quantize(e.Intercept)<<w | f.Quantize(e.Slope)
	}
	return out, nil
}

// WritePackedHeader writes the packed table as an ac_int array header.
func WritePackedHeader(w io.Writer, t *generator.Table, f FixedFormat, opts HeaderOptions) error {
	packed, err := PackCoefficients(t, f)
	if err != nil {
		return err
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "bf16_" + sanitize(t.Function) + "_packed"
	}
	guard := opts.Guard
	if guard == "" {
		guard = strings.ToUpper(ns) + "_COEFFS_HPP"
	}
	width := f.Width()

	ew := &errWriter{w: w}
	ew.printf("#ifndef %s\n#define %s\n\n", guard, guard)
	ew.printf("#include \"ac_int.h\"\n\n")
	ew.printf("namespace %s {\n\n", ns)
	ew.printf("constexpr int LUT_SIZE = %d;\n", len(packed))
	ew.printf("constexpr int COEFF_I = %d;\n", f.IntBits)
	ew.printf("constexpr int COEFF_F = %d;\n", f.FracBits)
	ew.printf("constexpr int COEFF_W = %d;\n", width)
	ew.printf("constexpr int PACKED_W = %d;\n\n", 2*width)
	ew.printf("// Packed coefficients: [ b (%d bits) | a (%d bits) ]\n", width, width)
	ew.printf("// Format: unsigned %d.%d\n", f.IntBits, f.FracBits)
	ew.printf("static const ac_int<PACKED_W, false> coeffs[LUT_SIZE] = {\n")
	for i, p := range packed {
		comma := ","
		if i == len(packed)-1 {
			comma = ""
		}
		ew.printf("    0x%xULL%s // Index %d\n", p, comma, i)
	}
	ew.printf("};\n\n")
	ew.printf("} // namespace %s\n\n", ns)
	ew.printf("#endif // %s\n", guard)
	return ew.err
}

type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
	if ew.err != nil {
		ew.err = merry.Wrap(ew.err)
	}
}
