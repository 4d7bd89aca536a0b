// Package sensitivity breaks a portfolio's result down by asset: how much of
// the portfolio each position weighs, how much of the return it explains and
// how volatile it is.
package sensitivity

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/work"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/rs/zerolog"
)

// Impact classifies a contribution.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
	ImpactNeutral  Impact = "neutral"
)

// DeadBand is the contribution, in percentage points, inside which an asset is neutral.
const DeadBand = 0.5

// VolatilitySource tells whether a volatility figure came from a feed.
type VolatilitySource string

const (
	VolatilityMeasured  VolatilitySource = "measured"
	VolatilityEstimated VolatilitySource = "estimated"
)

// fallbackVolatility is the annualized volatility, in percent, assumed per
// instrument class when no feed can measure it.
var fallbackVolatility = map[domain.AssetClass]float64{
	domain.ClassFixedIncome:    1,
	domain.ClassEquity:         25,
	domain.ClassRealEstateFund: 15,
	domain.ClassCrypto:         50,
	domain.ClassOther:          25,
}

// FallbackVolatility returns the estimate used for an instrument type.
func FallbackVolatility(t domain.InstrumentType) float64 {
	if v, ok := fallbackVolatility[t.Class()]; ok {
		return v
	}
	return fallbackVolatility[domain.ClassOther]
}

// AssetContribution is one row of the sensitivity table.
type AssetContribution struct {
	PositionID       string                `json:"position_id"`
	Name             string                `json:"name"`
	Ticker           string                `json:"ticker,omitempty"`
	Type             domain.InstrumentType `json:"type"`
	Class            domain.AssetClass     `json:"class"`
	Value            float64               `json:"value"`
	Invested         float64               `json:"invested"`
	Weight           float64               `json:"weight"`
	Contribution     float64               `json:"contribution"`
	Impact           Impact                `json:"impact"`
	Volatility       float64               `json:"volatility"`
	VolatilitySource VolatilitySource      `json:"volatility_source"`
	ChangePercent    *float64              `json:"change_percent,omitempty"`
}

// Analyzer computes per-asset contributions.
type Analyzer struct {
	feed domain.AnalysisFeed
	pool *work.Pool
	log  zerolog.Logger
}

// NewAnalyzer creates an analyzer. feed may be nil, in which case every
// volatility is estimated. workers bounds concurrent feed lookups.
func NewAnalyzer(feed domain.AnalysisFeed, workers int, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		feed: feed,
		pool: work.NewPool(workers),
		log:  log.With().Str("service", "sensitivity").Logger(),
	}
}

// Analyze returns one contribution per position, largest absolute
// contribution first. Values must already be in the reporting currency.
//
// weight = value / portfolioValue * 100
// contribution = (value - invested) / portfolioInvested * 100
func (a *Analyzer) Analyze(ctx context.Context, positions []domain.Position, portfolioValue, portfolioInvested float64) []AssetContribution {
	out := make([]AssetContribution, len(positions))
	for i, p := range positions {
		contribution := formulas.Percent(p.CurrentValue-p.TotalInvested, portfolioInvested)
		out[i] = AssetContribution{
			PositionID:       p.ID,
			Name:             p.Name,
			Ticker:           p.Ticker,
			Type:             p.Type,
			Class:            p.Type.Class(),
			Value:            p.CurrentValue,
			Invested:         p.TotalInvested,
			Weight:           formulas.Percent(p.CurrentValue, portfolioValue),
			Contribution:     contribution,
			Impact:           classify(contribution),
			Volatility:       FallbackVolatility(p.Type),
			VolatilitySource: VolatilityEstimated,
		}
	}

	a.measure(ctx, out)

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Contribution) > math.Abs(out[j].Contribution)
	})
	return out
}

// measure replaces estimated volatilities with feed values where the feed
// knows the ticker. Any feed error keeps the estimate.
func (a *Analyzer) measure(ctx context.Context, rows []AssetContribution) {
	if a.feed == nil {
		return
	}

	var idx []int
	for i, row := range rows {
		if strings.TrimSpace(row.Ticker) != "" && row.Class != domain.ClassFixedIncome {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return
	}

	results := work.Run(ctx, a.pool, idx, func(ctx context.Context, i int) (*domain.Analysis, error) {
		return a.feed.Analyze(ctx, rows[i].Ticker)
	})

	measured := 0
	for _, res := range results {
		row := &rows[res.Item]
		if res.Err != nil || res.Value == nil {
			a.log.Debug().Err(res.Err).Str("ticker", row.Ticker).Msg("Using estimated volatility")
			continue
		}
		if formulas.IsFinite(res.Value.Volatility) && res.Value.Volatility > 0 {
			row.Volatility = res.Value.Volatility
			row.VolatilitySource = VolatilityMeasured
			measured++
		}
		if res.Value.ChangePercent != nil && formulas.IsFinite(*res.Value.ChangePercent) {
			change := *res.Value.ChangePercent
			row.ChangePercent = &change
		}
	}

	a.log.Debug().Int("tickers", len(idx)).Int("measured", measured).Msg("Volatility lookup finished")
}

func classify(contribution float64) Impact {
	switch {
	case contribution > DeadBand:
		return ImpactPositive
	case contribution < -DeadBand:
		return ImpactNegative
	default:
		return ImpactNeutral
	}
}
