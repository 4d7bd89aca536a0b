package portfolio

import (
	"errors"
	"math"
	"strings"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/rs/zerolog"
)

// View selects which wealth figure a caller wants.
type View string

const (
	// ViewInvestments is the investable portfolio only.
	ViewInvestments View = "investments"
	// ViewTotalWealth adds global assets to the investments.
	ViewTotalWealth View = "total_wealth"
)

// ParseView maps a query value to a View, defaulting to investments.
func ParseView(s string) View {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "total", "total_wealth", "wealth":
		return ViewTotalWealth
	default:
		return ViewInvestments
	}
}

// SkippedItem is a position or asset left out of a sum.
type SkippedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Aggregate is the result of summing a set of positions.
type Aggregate struct {
	Totals  domain.Totals `json:"totals"`
	Counted int           `json:"counted"`
	Skipped []SkippedItem `json:"skipped,omitempty"`
}

// Wealth splits investments from global assets.
type Wealth struct {
	View         View          `json:"view"`
	Investments  float64       `json:"investments"`
	GlobalAssets float64       `json:"global_assets"`
	Total        float64       `json:"total"`
	Skipped      []SkippedItem `json:"skipped,omitempty"`
}

// Value returns the figure for the wealth's view.
func (w Wealth) Value() float64 {
	if w.View == ViewTotalWealth {
		return w.Total
	}
	return w.Investments
}

// Aggregator sums positions into portfolio totals. It holds no mutable state
// and is safe for concurrent use.
type Aggregator struct {
	rates     domain.RateProvider
	reporting string
	log       zerolog.Logger
}

// NewAggregator creates an aggregator. Positions in a currency other than
// reporting are converted through rates; rates may be nil when every position
// is held in the reporting currency.
func NewAggregator(rates domain.RateProvider, reporting string, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		rates:     rates,
		reporting: strings.ToUpper(reporting),
		log:       log.With().Str("service", "aggregator").Logger(),
	}
}

// Aggregate sums the valid positions. Malformed positions and positions in a
// currency without a rate are reported in Skipped and never abort the sum.
func (a *Aggregator) Aggregate(positions []domain.Position) Aggregate {
	var agg Aggregate

	for _, p := range positions {
		if err := p.Validate(); err != nil {
			a.log.Warn().Err(err).Str("position_id", p.ID).Msg("Skipping malformed position")
			agg.Skipped = append(agg.Skipped, SkippedItem{ID: p.ID, Reason: err.Error()})
			continue
		}

		rate, err := a.rateFor(p.Currency)
		if err != nil {
			a.log.Warn().Err(err).Str("position_id", p.ID).Msg("Skipping position without rate")
			agg.Skipped = append(agg.Skipped, SkippedItem{ID: p.ID, Reason: err.Error()})
			continue
		}

		agg.Totals.TotalValue += p.CurrentValue * rate
		agg.Totals.TotalInvested += p.TotalInvested * rate
		agg.Counted++
	}

	agg.Totals.TotalGain = agg.Totals.TotalValue - agg.Totals.TotalInvested
	agg.Totals.GainPercent = formulas.Percent(agg.Totals.TotalGain, agg.Totals.TotalInvested)
	return agg
}

// Convert returns p with its value and invested amount expressed in the
// reporting currency. Prices are left in the position's own currency.
func (a *Aggregator) Convert(p domain.Position) (domain.Position, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	rate, err := a.rateFor(p.Currency)
	if err != nil {
		return p, err
	}
	p.CurrentValue *= rate
	p.TotalInvested *= rate
	return p, nil
}

// CombinedWealth adds the reporting values of global assets to investment
// totals. Assets with non-finite values are skipped.
func (a *Aggregator) CombinedWealth(totals domain.Totals, assets []domain.GlobalAsset) Wealth {
	w := Wealth{View: ViewTotalWealth, Investments: totals.TotalValue}

	for _, asset := range assets {
		if !formulas.IsFinite(asset.ValueReporting) {
			w.Skipped = append(w.Skipped, SkippedItem{ID: asset.ID, Reason: "value_reporting is not a finite number"})
			continue
		}
		w.GlobalAssets += asset.ValueReporting
	}

	w.Total = w.Investments + w.GlobalAssets
	return w
}

func (a *Aggregator) rateFor(currency string) (float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == a.reporting || a.rates == nil {
		return 1, nil
	}

	entry, err := a.rates.GetRate(currency)
	if err != nil && !errors.Is(err, domain.ErrStaleRate) {
		return 0, err
	}
	if entry.Rate <= 0 || math.IsNaN(entry.Rate) || math.IsInf(entry.Rate, 0) {
		return 0, domain.ErrUnknownCurrency
	}
	return entry.Rate, nil
}

// totalsDrift reports whether two totals differ by more than tolerance in
// value or invested.
func totalsDrift(stored, computed domain.Totals, tolerance float64) bool {
	return math.Abs(stored.TotalValue-computed.TotalValue) > tolerance ||
		math.Abs(stored.TotalInvested-computed.TotalInvested) > tolerance
}
