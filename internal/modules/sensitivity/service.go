package sensitivity

import (
	"context"
	"fmt"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// PositionSource reads a portfolio's positions.
type PositionSource interface {
	GetPositions(ctx context.Context, portfolioID string) ([]domain.Position, error)
}

// Result is the sensitivity table of one portfolio.
type Result struct {
	PortfolioID   string                  `json:"portfolio_id"`
	TotalValue    float64                 `json:"total_value"`
	TotalInvested float64                 `json:"total_invested"`
	Assets        []AssetContribution     `json:"assets"`
	Skipped       []portfolio.SkippedItem `json:"skipped,omitempty"`
}

// Service answers sensitivity queries for stored portfolios.
type Service struct {
	positions  PositionSource
	aggregator *portfolio.Aggregator
	analyzer   *Analyzer
	log        zerolog.Logger
}

// NewService creates a sensitivity service
func NewService(positions PositionSource, aggregator *portfolio.Aggregator, analyzer *Analyzer, log zerolog.Logger) *Service {
	return &Service{
		positions:  positions,
		aggregator: aggregator,
		analyzer:   analyzer,
		log:        log.With().Str("service", "sensitivity").Logger(),
	}
}

// GetSensitivity converts the portfolio's positions to the reporting currency
// and analyzes them. Positions that cannot be converted are skipped.
func (s *Service) GetSensitivity(ctx context.Context, portfolioID string) (*Result, error) {
	positions, err := s.positions.GetPositions(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	res := &Result{PortfolioID: portfolioID}
	converted := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		c, err := s.aggregator.Convert(p)
		if err != nil {
			res.Skipped = append(res.Skipped, portfolio.SkippedItem{ID: p.ID, Reason: err.Error()})
			continue
		}
		res.TotalValue += c.CurrentValue
		res.TotalInvested += c.TotalInvested
		converted = append(converted, c)
	}

	res.Assets = s.analyzer.Analyze(ctx, converted, res.TotalValue, res.TotalInvested)

	s.log.Debug().
		Str("portfolio_id", portfolioID).
		Int("assets", len(res.Assets)).
		Int("skipped", len(res.Skipped)).
		Msg("Sensitivity computed")
	return res, nil
}
