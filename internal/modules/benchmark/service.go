// Package benchmark computes the accumulated benchmark rates snapshots are
// compared against: a risk-free reference rate (A) and inflation (B).
package benchmark

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/rs/zerolog"
)

// Rates are accumulated benchmark percentages over their rolling windows.
type Rates struct {
	A         float64   `json:"accumulated_rate_a"` // risk-free, last 252 daily rates
	B         float64   `json:"accumulated_rate_b"` // inflation, last 12 monthly rates
	AsOf      time.Time `json:"as_of"`
	Estimated bool      `json:"estimated"`
}

// Service reads the benchmark feed and compounds its series.
type Service struct {
	feed domain.BenchmarkFeed
	log  zerolog.Logger
	now  func() time.Time

	mu   sync.Mutex
	last *Rates
}

// NewService creates a benchmark service. feed may be nil, in which case every
// rate is reported as an estimated zero.
func NewService(feed domain.BenchmarkFeed, log zerolog.Logger) *Service {
	return &Service{
		feed: feed,
		log:  log.With().Str("service", "benchmark").Logger(),
		now:  time.Now,
	}
}

// Current returns both accumulated rates.
//
// A series the feed cannot deliver falls back to the last value this service
// computed. With nothing computed yet the rate is 0 and Estimated is set.
func (s *Service) Current(ctx context.Context) Rates {
	out := Rates{AsOf: s.now()}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	a, okA := s.series(ctx, "risk_free", formulas.RiskFreeWindow, s.dailyRiskFree)
	b, okB := s.series(ctx, "inflation", formulas.InflationWindow, s.monthlyInflation)

	switch {
	case okA:
		out.A = a
	case last != nil:
		out.A = last.A
		out.Estimated = last.Estimated
	default:
		out.Estimated = true
	}

	switch {
	case okB:
		out.B = b
	case last != nil:
		out.B = last.B
		out.Estimated = out.Estimated || last.Estimated
	default:
		out.Estimated = true
	}

	if okA || okB {
		s.mu.Lock()
		s.last = &out
		s.mu.Unlock()
	}

	if out.Estimated {
		s.log.Warn().
			Float64("rate_a", out.A).
			Float64("rate_b", out.B).
			Msg("Benchmark rates unavailable, using estimates")
	}
	return out
}

func (s *Service) series(
	ctx context.Context,
	name string,
	window int,
	fetch func(context.Context, int) ([]float64, error),
) (float64, bool) {
	if s.feed == nil {
		return 0, false
	}

	rates, err := fetch(ctx, window)
	if err != nil {
		s.log.Warn().Err(err).Str("series", name).Msg("Failed to fetch benchmark series")
		return 0, false
	}
	if len(rates) == 0 {
		s.log.Warn().Str("series", name).Msg("Benchmark series is empty")
		return 0, false
	}

	return formulas.AccumulatedRate(rates, window), true
}

func (s *Service) dailyRiskFree(ctx context.Context, n int) ([]float64, error) {
	return s.feed.DailyRiskFree(ctx, n)
}

func (s *Service) monthlyInflation(ctx context.Context, n int) ([]float64, error) {
	return s.feed.MonthlyInflation(ctx, n)
}
