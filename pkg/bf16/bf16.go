// Package bf16 models the bfloat16 format: the upper 16 bits of an IEEE-754
// binary32 (1 sign bit, 8 exponent bits, 7 mantissa bits).
//
// Values are carried as float64 throughout; a float64 is a "format value" when
// it is exactly representable in bf16, i.e. it converts to binary32 exactly and
// the low 16 bits of that pattern are zero.
package bf16

import (
	"math"
	"strconv"
)

const (
	MantissaBits      = 7
	ExponentBits      = 8
	Bias              = 127
	MinNormalExponent = 1 - Bias

	// Step is one bf16 increment expressed in binary32 bit-pattern units.
	Step     uint32 = 1 << 16
	lowMask  uint32 = Step - 1
	highMask uint32 = ^lowMask

	f32ExpMask  uint32 = 0x7F800000
	f32SignMask uint32 = 0x80000000
)

// BF16 is a raw 16-bit bf16 pattern.
type BF16 uint16

// FromFloat64 rounds v to the nearest bf16 pattern, ties to even.
func FromFloat64(v float64) BF16 {
	return BF16(roundBits(math.Float32bits(float32(v))) >> 16)
}

// Float32 widens the pattern back into binary32.
func (b BF16) Float32() float32 {
	return math.Float32frombits(uint32(b) << 16)
}

func (b BF16) Float64() float64 {
	return float64(b.Float32())
}

func (b BF16) Bits() uint16 {
	return uint16(b)
}

func (b BF16) String() string {
	return strconv.FormatFloat(b.Float64(), 'g', -1, 32)
}

// Components returns the sign, biased exponent and mantissa fields.
func (b BF16) Components() (sign, exponent, mantissa uint8) {
	sign = uint8(b >> 15)
	exponent = uint8((b >> MantissaBits) & (1<<ExponentBits - 1))
	mantissa = uint8(b & (1<<MantissaBits - 1))
	return sign, exponent, mantissa
}

func (b BF16) IsFinite() bool {
	_, e, _ := b.Components()
	return e != 1<<ExponentBits-1
}

// roundBits applies round-to-nearest-even on the 16 discarded bits of a
// binary32 pattern and clears them. The bias is half a step plus the lowest
// kept bit, so exact ties land on an even kept mantissa.
func roundBits(bits uint32) uint32 {
	if bits&f32ExpMask == f32ExpMask && bits&^(f32ExpMask|f32SignMask) != 0 {
		// NaN: keep it quiet instead of letting the bias carry into the sign.
		return (bits | 0x00400000) & highMask
	}
	keptLSB := (bits >> 16) & 1
	bits += 0x7FFF + keptLSB
	return bits & highMask
}

// Quantize reduces r to the nearest bf16 value: first to binary32, then
// round-to-nearest-even on the truncated low half.
func Quantize(r float64) float64 {
	if math.IsNaN(r) {
		return r
	}
	return float64(math.Float32frombits(roundBits(math.Float32bits(float32(r)))))
}

// IsRepresentable reports whether v is exactly a bf16 value.
func IsRepresentable(v float64) bool {
	f := float32(v)
	if float64(f) != v {
		return false
	}
	return math.Float32bits(f)&lowMask == 0
}

// UlpStep is the size of one bf16 increment at the scale of v:
// 2^(max(floor(log2|v|), MinNormalExponent) - MantissaBits).
// Zero uses the subnormal step; non-finite input yields +Inf.
func UlpStep(v float64) float64 {
	if v == 0 {
		return math.Ldexp(1, MinNormalExponent-MantissaBits)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.Inf(1)
	}
	// Frexp gives |v| = frac * 2^exp with frac in [0.5, 1), so floor(log2|v|) = exp-1.
	_, exp := math.Frexp(math.Abs(v))
	e := exp - 1
	if e < MinNormalExponent {
		e = MinNormalExponent
	}
	return math.Ldexp(1, e-MantissaBits)
}
