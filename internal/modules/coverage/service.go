package coverage

import (
	"context"
	"fmt"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// PortfolioSource is what the coverage service reads from the portfolio side.
type PortfolioSource interface {
	GetPositions(ctx context.Context, portfolioID string) ([]domain.Position, error)
	GetWealth(ctx context.Context, portfolioID string, view portfolio.View) (*portfolio.Wealth, error)
}

// Result is the coverage of one portfolio.
type Result struct {
	PortfolioID string                  `json:"portfolio_id"`
	TotalWealth float64                 `json:"total_wealth"`
	Coverage    Coverage                `json:"coverage"`
	Skipped     []portfolio.SkippedItem `json:"skipped,omitempty"`
}

// Service answers coverage queries.
type Service struct {
	portfolios PortfolioSource
	aggregator *portfolio.Aggregator
	limit      float64
	totalLimit float64
	log        zerolog.Logger
}

// NewService creates a coverage service with the per-issuer and total limits.
func NewService(portfolios PortfolioSource, aggregator *portfolio.Aggregator, limit, totalLimit float64, log zerolog.Logger) *Service {
	return &Service{
		portfolios: portfolios,
		aggregator: aggregator,
		limit:      limit,
		totalLimit: totalLimit,
		log:        log.With().Str("service", "coverage").Logger(),
	}
}

// GetCoverage computes the coverage of a portfolio against its total wealth
// (positions plus global assets).
func (s *Service) GetCoverage(ctx context.Context, portfolioID string) (*Result, error) {
	positions, err := s.portfolios.GetPositions(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	wealth, err := s.portfolios.GetWealth(ctx, portfolioID, portfolio.ViewTotalWealth)
	if err != nil {
		return nil, fmt.Errorf("failed to read wealth: %w", err)
	}

	res := &Result{PortfolioID: portfolioID, TotalWealth: wealth.Total}
	converted := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		c, err := s.aggregator.Convert(p)
		if err != nil {
			res.Skipped = append(res.Skipped, portfolio.SkippedItem{ID: p.ID, Reason: err.Error()})
			continue
		}
		converted = append(converted, c)
	}

	res.Coverage = Calculate(converted, s.limit, s.totalLimit, wealth.Total)

	if res.Coverage.UncoveredValue > 0 {
		s.log.Debug().
			Str("portfolio_id", portfolioID).
			Float64("uncovered", res.Coverage.UncoveredValue).
			Bool("total_limit_applied", res.Coverage.TotalLimitApplied).
			Msg("Portfolio has uninsured exposure")
	}
	return res, nil
}
