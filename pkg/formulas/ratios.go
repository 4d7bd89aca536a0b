package formulas

import "math"

// Epsilon below which a denominator is treated as zero.
const Epsilon = 1e-9

// SafeDivide returns num/den, or 0 when den is zero, near zero, or either side is not finite.
func SafeDivide(num, den float64) float64 {
	if math.Abs(den) < Epsilon || !IsFinite(num) || !IsFinite(den) {
		return 0
	}
	result := num / den
	if !IsFinite(result) {
		return 0
	}
	return result
}

// Percent returns num/den*100 with the SafeDivide guard.
func Percent(num, den float64) float64 {
	return SafeDivide(num, den) * 100
}

// GainPercent returns (value - invested) / invested * 100, 0 when invested is 0.
func GainPercent(value, invested float64) float64 {
	return Percent(value-invested, invested)
}

// RealReturn deflates a nominal percentage return by an inflation percentage.
//
// Formula: ((1 + nominal) / (1 + inflation) - 1) * 100
func RealReturn(nominalPercent, inflationPercent float64) float64 {
	den := 1 + inflationPercent/100
	if math.Abs(den) < Epsilon {
		return 0
	}
	return ((1+nominalPercent/100)/den - 1) * 100
}

// IsFinite reports whether x is neither NaN nor ±Inf.
func IsFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Round rounds x to the given number of decimals.
func Round(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}
