package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// DefaultChangePeriod is the lookback, in bars, for a recent price change.
const DefaultChangePeriod = 5

// RateOfChange returns the percent change of the last close against the close
// `period` bars earlier, or nil if there are not enough closes.
//
// ROC = (close / close[period ago] - 1) * 100
func RateOfChange(closes []float64, period int) *float64 {
	if period < 1 || len(closes) < period+1 {
		return nil
	}

	roc := talib.Roc(closes, period)
	if len(roc) == 0 {
		return nil
	}

	last := roc[len(roc)-1]
	if math.IsNaN(last) || math.IsInf(last, 0) {
		return nil
	}
	return &last
}
