// Package performance derives period returns and benchmark ratios from the
// snapshot history of a portfolio.
package performance

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/rs/zerolog"
)

// HistorySource reads a portfolio's snapshots between two dates, oldest first.
type HistorySource interface {
	GetHistory(ctx context.Context, portfolioID string, from, to time.Time) ([]domain.HistorySnapshot, error)
}

// TotalsSource provides the current totals used for the provisional projection.
type TotalsSource interface {
	GetPortfolioTotals(ctx context.Context, portfolioID string) (*portfolio.TotalsResult, error)
}

// Point is one monthly or annual bucket: the last snapshot of that bucket.
type Point struct {
	Label          string  `json:"label"`
	Date           string  `json:"date"`
	TotalValue     float64 `json:"total_value"`
	TotalInvested  float64 `json:"total_invested"`
	TotalGain      float64 `json:"total_gain"`
	Return         float64 `json:"return_percent"`
	ValueChange    float64 `json:"value_change_percent"`
	BenchmarkA     float64 `json:"accumulated_rate_a"`
	BenchmarkB     float64 `json:"accumulated_rate_b"`
	BenchmarkRatio float64 `json:"benchmark_ratio"`
	Provisional    bool    `json:"provisional"`
}

// Performance is the result of analyzing one portfolio over one period.
type Performance struct {
	PortfolioID          string  `json:"portfolio_id"`
	Period               Period  `json:"period"`
	StartDate            string  `json:"start_date,omitempty"`
	EndDate              string  `json:"end_date,omitempty"`
	Snapshots            int     `json:"snapshots"`
	AccumulatedReturn    float64 `json:"accumulated_return"`
	PeriodGain           float64 `json:"period_gain"`
	ValueChangePercent   float64 `json:"value_change_percent"`
	BenchmarkAccumulated float64 `json:"benchmark_accumulated"`
	BenchmarkRatio       float64 `json:"benchmark_ratio"`
	InflationAccumulated float64 `json:"inflation_accumulated"`
	InflationRatio       float64 `json:"inflation_ratio"`
	RealReturn           float64 `json:"real_return"`
	Monthly              []Point `json:"monthly"`
	Annual               []Point `json:"annual"`
	Provisional          bool    `json:"provisional"`
}

// Analyzer computes Performance from the snapshot series.
type Analyzer struct {
	history HistorySource
	totals  TotalsSource
	log     zerolog.Logger
	now     func() time.Time
}

// NewAnalyzer creates a performance analyzer
func NewAnalyzer(history HistorySource, totals TotalsSource, log zerolog.Logger) *Analyzer {
	return &Analyzer{
		history: history,
		totals:  totals,
		log:     log.With().Str("service", "performance").Logger(),
		now:     time.Now,
	}
}

// Now returns the analyzer's clock, used to resolve period codes.
func (a *Analyzer) Now() time.Time {
	return a.now()
}

// Analyze returns the performance of a portfolio over period.
//
// Returns come from the endpoint snapshots and are never summed across
// buckets. A period without snapshots yields a provisional linear projection
// from zero to the current totals.
func (a *Analyzer) Analyze(ctx context.Context, portfolioID string, period Period) (*Performance, error) {
	snaps, err := a.history.GetHistory(ctx, portfolioID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	if len(snaps) == 0 {
		return a.project(ctx, portfolioID, period)
	}

	first := snaps[0]
	last := snaps[len(snaps)-1]
	ret := formulas.Percent(last.TotalGain, last.TotalInvested)

	perf := &Performance{
		PortfolioID:          portfolioID,
		Period:               period,
		StartDate:            first.Date,
		EndDate:              last.Date,
		Snapshots:            len(snaps),
		AccumulatedReturn:    ret,
		PeriodGain:           last.TotalGain - first.TotalGain,
		ValueChangePercent:   formulas.Percent(last.TotalValue-first.TotalValue, first.TotalValue),
		BenchmarkAccumulated: last.AccumulatedRateA,
		BenchmarkRatio:       formulas.Percent(ret, last.AccumulatedRateA),
		InflationAccumulated: last.AccumulatedRateB,
		InflationRatio:       formulas.Percent(ret, last.AccumulatedRateB),
		RealReturn:           formulas.RealReturn(ret, last.AccumulatedRateB),
		Monthly:              buckets(snaps, "2006-01", false),
		Annual:               buckets(snaps, "2006", false),
	}

	a.log.Debug().
		Str("portfolio_id", portfolioID).
		Str("period", period.Code).
		Int("snapshots", len(snaps)).
		Float64("return", ret).
		Msg("Performance analyzed")

	return perf, nil
}

// buckets keeps the last snapshot per label (month or year). snaps must be
// ordered by date.
func buckets(snaps []domain.HistorySnapshot, layout string, provisional bool) []Point {
	var points []Point
	for _, s := range snaps {
		label := s.Time().Format(layout)
		p := point(label, s, provisional)
		if n := len(points); n > 0 && points[n-1].Label == label {
			points[n-1] = p
			continue
		}
		points = append(points, p)
	}

	for i := 1; i < len(points); i++ {
		points[i].ValueChange = formulas.Percent(points[i].TotalValue-points[i-1].TotalValue, points[i-1].TotalValue)
	}
	return points
}

func point(label string, s domain.HistorySnapshot, provisional bool) Point {
	ret := formulas.Percent(s.TotalGain, s.TotalInvested)
	return Point{
		Label:          label,
		Date:           s.Date,
		TotalValue:     s.TotalValue,
		TotalInvested:  s.TotalInvested,
		TotalGain:      s.TotalGain,
		Return:         ret,
		BenchmarkA:     s.AccumulatedRateA,
		BenchmarkB:     s.AccumulatedRateB,
		BenchmarkRatio: formulas.Percent(ret, s.AccumulatedRateA),
		Provisional:    provisional,
	}
}

// project builds the provisional series: one point per month end between the
// period start and end, growing linearly from zero to the current totals.
func (a *Analyzer) project(ctx context.Context, portfolioID string, period Period) (*Performance, error) {
	current, err := a.totals.GetPortfolioTotals(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	totals := current.Totals

	end := period.End
	if end.IsZero() {
		end = day(a.now())
	}
	start := period.Start
	if start.IsZero() {
		start = monthsBack(end, 12)
	}

	ends := monthEnds(start, end)
	series := make([]domain.HistorySnapshot, len(ends))
	for i, t := range ends {
		f := float64(i+1) / float64(len(ends))
		series[i] = domain.HistorySnapshot{
			PortfolioID:   portfolioID,
			Date:          t.Format(domain.DateLayout),
			TotalValue:    totals.TotalValue * f,
			TotalInvested: totals.TotalInvested * f,
			TotalGain:     totals.TotalGain * f,
		}
	}

	a.log.Info().
		Str("portfolio_id", portfolioID).
		Str("period", period.Code).
		Int("points", len(series)).
		Msg("No snapshots in period, returning provisional projection")

	ret := formulas.Percent(totals.TotalGain, totals.TotalInvested)
	return &Performance{
		PortfolioID:        portfolioID,
		Period:             period,
		StartDate:          start.Format(domain.DateLayout),
		EndDate:            end.Format(domain.DateLayout),
		AccumulatedReturn:  ret,
		PeriodGain:         totals.TotalGain,
		ValueChangePercent: 0,
		RealReturn:         ret,
		Monthly:            buckets(series, "2006-01", true),
		Annual:             buckets(series, "2006", true),
		Provisional:        true,
	}, nil
}

// monthEnds returns the last day of every month from start's month up to end,
// with end itself closing the series.
func monthEnds(start, end time.Time) []time.Time {
	var out []time.Time
	cur := time.Date(start.Year(), start.Month()+1, 0, 0, 0, 0, 0, start.Location())
	for cur.Before(end) {
		out = append(out, cur)
		cur = time.Date(cur.Year(), cur.Month()+2, 0, 0, 0, 0, 0, cur.Location())
	}
	return append(out, end)
}
