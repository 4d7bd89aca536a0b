// Package formulas holds the numeric building blocks of the valuation engine.
package formulas

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Window sizes for the rolling benchmark series.
const (
	RiskFreeWindow  = 252 // daily entries, one trading year
	InflationWindow = 12  // monthly entries
)

// AccumulatedRate compounds period rates over a rolling window.
//
// Rates are decimals (0.0005 for 0.05%). Only the last `window` entries are
// used; window <= 0 means the whole series. Non-finite entries are ignored.
//
// Returns:
//   - (Π(1 + r_i) - 1) * 100, the accumulated rate as a percentage
func AccumulatedRate(rates []float64, window int) float64 {
	if window > 0 && len(rates) > window {
		rates = rates[len(rates)-window:]
	}

	factors := make([]float64, 0, len(rates))
	for _, r := range rates {
		if math.IsNaN(r) || math.IsInf(r, 0) {
			continue
		}
		factors = append(factors, 1+r)
	}
	if len(factors) == 0 {
		return 0
	}

	return (floats.Prod(factors) - 1) * 100
}

// AccumulatedRateFromPercent is AccumulatedRate for series quoted in percent
// (0.05 for 0.05%), which is how most public rate feeds publish them.
func AccumulatedRateFromPercent(percentRates []float64, window int) float64 {
	decimals := make([]float64, len(percentRates))
	for i, p := range percentRates {
		decimals[i] = p / 100
	}
	return AccumulatedRate(decimals, window)
}
