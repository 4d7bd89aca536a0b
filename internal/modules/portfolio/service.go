// Package portfolio owns portfolios, their positions and global assets, and
// keeps each portfolio's cached totals equal to the sum of its positions.
package portfolio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DriftTolerance is the absolute difference between stored and recomputed
// totals above which stored totals are rewritten.
const DriftTolerance = 0.005

// AssetRevaluer prices a global asset in the reporting currency.
type AssetRevaluer interface {
	Revalue(asset *domain.GlobalAsset) error
}

// MovementWriter appends ledger movements inside a transaction.
type MovementWriter interface {
	Insert(tx *sql.Tx, m domain.Movement) error
}

// PositionInput carries the user-editable fields of a position.
type PositionInput struct {
	PortfolioID   string                `json:"portfolio_id"`
	Name          string                `json:"name"`
	Type          domain.InstrumentType `json:"type"`
	Ticker        string                `json:"ticker"`
	Quantity      float64               `json:"quantity"`
	PurchasePrice float64               `json:"purchase_price"`
	CurrentPrice  float64               `json:"current_price"`
	Currency      string                `json:"currency"`
}

// GlobalAssetInput carries the user-editable fields of a global asset.
type GlobalAssetInput struct {
	Name          string  `json:"name"`
	Category      string  `json:"category"`
	Currency      string  `json:"currency"`
	OriginalValue float64 `json:"original_value"`
}

// TotalsResult is a verified read of a portfolio's totals.
type TotalsResult struct {
	PortfolioID string        `json:"portfolio_id"`
	Totals      domain.Totals `json:"totals"`
	Skipped     []SkippedItem `json:"skipped,omitempty"`
	Repaired    bool          `json:"repaired"`
}

// Service orchestrates portfolio operations.
//
// Every position mutation runs in one transaction that writes the position,
// re-reads the portfolio's positions, aggregates them and writes the totals,
// so a reader never sees positions and totals disagree.
type Service struct {
	db         *sql.DB
	portfolios *PortfolioRepository
	positions  *PositionRepository
	assets     *GlobalAssetRepository
	aggregator *Aggregator
	revaluer   AssetRevaluer
	ledger     MovementWriter
	emitter    events.Emitter
	reporting  string
	log        zerolog.Logger
	now        func() time.Time
}

// NewService creates a portfolio service over the portfolio database.
func NewService(
	db *sql.DB,
	aggregator *Aggregator,
	revaluer AssetRevaluer,
	ledger MovementWriter,
	emitter events.Emitter,
	reportingCurrency string,
	log zerolog.Logger,
) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{
		db:         db,
		portfolios: NewPortfolioRepository(db, log),
		positions:  NewPositionRepository(db, log),
		assets:     NewGlobalAssetRepository(db, log),
		aggregator: aggregator,
		revaluer:   revaluer,
		ledger:     ledger,
		emitter:    emitter,
		reporting:  strings.ToUpper(reportingCurrency),
		log:        log.With().Str("service", "portfolio").Logger(),
		now:        time.Now,
	}
}

// Aggregator returns the aggregator used for totals.
func (s *Service) Aggregator() *Aggregator {
	return s.aggregator
}

// ReportingCurrency returns the currency totals are expressed in.
func (s *Service) ReportingCurrency() string {
	return s.reporting
}

// Assets exposes the global asset repository for consolidation.
func (s *Service) Assets() *GlobalAssetRepository {
	return s.assets
}

// CreatePortfolio creates an empty portfolio.
func (s *Service) CreatePortfolio(ctx context.Context, name string) (*domain.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	now := s.now()
	p := domain.Portfolio{ID: uuid.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.portfolios.Create(p); err != nil {
		return nil, err
	}

	s.log.Info().Str("portfolio_id", p.ID).Str("name", name).Msg("Portfolio created")
	return &p, nil
}

// ListPortfolios returns every portfolio with its stored totals.
func (s *Service) ListPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	return s.portfolios.List()
}

// GetPortfolio returns one portfolio.
func (s *Service) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	return s.portfolios.GetByID(id)
}

// RenamePortfolio changes a portfolio's name.
func (s *Service) RenamePortfolio(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	return s.portfolios.Rename(id, name, s.now())
}

// DeletePortfolio deletes a portfolio and its positions. Ledger movements and
// history snapshots are kept.
func (s *Service) DeletePortfolio(ctx context.Context, id string) error {
	return database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := s.positions.WithTx(tx).DeleteByPortfolio(id); err != nil {
			return err
		}
		return s.portfolios.WithTx(tx).Delete(id)
	})
}

// GetPositions returns the positions of one portfolio.
func (s *Service) GetPositions(ctx context.Context, portfolioID string) ([]domain.Position, error) {
	return s.positions.GetByPortfolio(portfolioID)
}

// GetPosition returns one position.
func (s *Service) GetPosition(ctx context.Context, id string) (*domain.Position, error) {
	return s.positions.GetByID(id)
}

// AddPosition creates a position and re-aggregates its portfolio.
func (s *Service) AddPosition(ctx context.Context, in PositionInput) (*domain.Position, error) {
	if err := s.validatePosition(&in); err != nil {
		return nil, err
	}

	p := domain.Position{
		ID:            uuid.New().String(),
		PortfolioID:   in.PortfolioID,
		Name:          in.Name,
		Type:          in.Type,
		Ticker:        in.Ticker,
		Quantity:      in.Quantity,
		PurchasePrice: in.PurchasePrice,
		CurrentPrice:  in.CurrentPrice,
		Currency:      in.Currency,
		UpdatedAt:     s.now(),
	}
	p.Recompute()

	totals, err := s.mutate(ctx, p.PortfolioID, func(tx *sql.Tx) error {
		if _, err := s.portfolios.WithTx(tx).GetByID(p.PortfolioID); err != nil {
			return err
		}
		return s.positions.WithTx(tx).Upsert(p)
	})
	if err != nil {
		return nil, err
	}

	s.positionChanged(p, "added", totals)
	return &p, nil
}

// UpdatePosition replaces the editable fields of a position.
func (s *Service) UpdatePosition(ctx context.Context, id string, in PositionInput) (*domain.Position, error) {
	existing, err := s.positions.GetByID(id)
	if err != nil {
		return nil, err
	}
	in.PortfolioID = existing.PortfolioID
	if err := s.validatePosition(&in); err != nil {
		return nil, err
	}

	now := s.now()
	var updated domain.Position
	totals, err := s.mutate(ctx, existing.PortfolioID, func(tx *sql.Tx) error {
		// Re-read inside the transaction so a concurrent delete is not undone.
		repo := s.positions.WithTx(tx)
		p, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		p.Name = in.Name
		p.Type = in.Type
		p.Ticker = in.Ticker
		p.Quantity = in.Quantity
		p.PurchasePrice = in.PurchasePrice
		p.CurrentPrice = in.CurrentPrice
		p.Currency = in.Currency
		p.UpdatedAt = now
		p.Recompute()
		updated = *p
		return repo.Upsert(*p)
	})
	if err != nil {
		return nil, err
	}

	s.positionChanged(updated, "updated", totals)
	return &updated, nil
}

// UpdatePrice sets a position's current price.
func (s *Service) UpdatePrice(ctx context.Context, id string, price float64) (*domain.Position, error) {
	if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return nil, fmt.Errorf("%w: price must be a non-negative number", domain.ErrInvalidInput)
	}

	existing, err := s.positions.GetByID(id)
	if err != nil {
		return nil, err
	}

	var updated domain.Position
	totals, err := s.mutate(ctx, existing.PortfolioID, func(tx *sql.Tx) error {
		repo := s.positions.WithTx(tx)
		p, err := repo.GetByID(id)
		if err != nil {
			return err
		}
		p.CurrentPrice = price
		p.UpdatedAt = s.now()
		p.Recompute()
		updated = *p
		return repo.Upsert(*p)
	})
	if err != nil {
		return nil, err
	}

	s.positionChanged(updated, "price_updated", totals)
	return &updated, nil
}

// DeletePosition removes a position and re-aggregates its portfolio.
func (s *Service) DeletePosition(ctx context.Context, id string) error {
	existing, err := s.positions.GetByID(id)
	if err != nil {
		return err
	}

	totals, err := s.mutate(ctx, existing.PortfolioID, func(tx *sql.Tx) error {
		return s.positions.WithTx(tx).Delete(id)
	})
	if err != nil {
		return err
	}

	s.positionChanged(*existing, "deleted", totals)
	return nil
}

// GetPortfolioTotals reads the stored totals and the positions in one
// transaction and re-aggregates. Stored totals that drifted are rewritten and
// the recomputed totals are returned.
func (s *Service) GetPortfolioTotals(ctx context.Context, id string) (*TotalsResult, error) {
	result := &TotalsResult{PortfolioID: id}

	err := database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		portfolios := s.portfolios.WithTx(tx)
		p, err := portfolios.GetByID(id)
		if err != nil {
			return err
		}
		positions, err := s.positions.WithTx(tx).GetByPortfolio(id)
		if err != nil {
			return err
		}

		agg := s.aggregator.Aggregate(positions)
		result.Totals = agg.Totals
		result.Skipped = agg.Skipped

		stored := p.Totals()
		if !totalsDrift(stored, agg.Totals, DriftTolerance) {
			return nil
		}

		drift := &domain.InconsistentAggregateError{PortfolioID: id, Stored: stored, Computed: agg.Totals}
		s.log.Warn().Err(drift).Msg("Stored totals drifted, re-aggregating")
		result.Repaired = true
		return portfolios.UpdateTotals(id, agg.Totals, s.now())
	})
	if err != nil {
		return nil, err
	}

	if result.Repaired {
		s.emitter.Emit(events.PortfolioRevalued, "portfolio", totalsEventData(id, result.Totals))
	}
	return result, nil
}

// GetWealth returns the investments-only or the total-wealth figure.
func (s *Service) GetWealth(ctx context.Context, id string, view View) (*Wealth, error) {
	totals, err := s.GetPortfolioTotals(ctx, id)
	if err != nil {
		return nil, err
	}

	if view != ViewTotalWealth {
		return &Wealth{View: ViewInvestments, Investments: totals.Totals.TotalValue, Total: totals.Totals.TotalValue}, nil
	}

	assets, err := s.assets.ListGlobalAssets()
	if err != nil {
		return nil, err
	}
	w := s.aggregator.CombinedWealth(totals.Totals, assets)
	return &w, nil
}

// SetBenchmarkRatio records the percentage of the risk-free benchmark achieved.
func (s *Service) SetBenchmarkRatio(ctx context.Context, id string, ratio float64) error {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		ratio = 0
	}
	return s.portfolios.SetBenchmarkRatio(id, ratio)
}

// ListGlobalAssets returns every global asset.
func (s *Service) ListGlobalAssets(ctx context.Context) ([]domain.GlobalAsset, error) {
	return s.assets.ListGlobalAssets()
}

// AddGlobalAsset creates a global asset valued at the current rate. A stale
// rate is logged and used.
func (s *Service) AddGlobalAsset(ctx context.Context, in GlobalAssetInput) (*domain.GlobalAsset, error) {
	if err := s.validateAsset(&in); err != nil {
		return nil, err
	}

	asset := domain.GlobalAsset{
		ID:            uuid.New().String(),
		Name:          in.Name,
		Category:      in.Category,
		Currency:      in.Currency,
		OriginalValue: in.OriginalValue,
	}
	if err := s.revalue(&asset); err != nil {
		return nil, err
	}
	if err := s.assets.Upsert(asset); err != nil {
		return nil, err
	}

	s.emitter.Emit(events.AssetRevalued, "portfolio", map[string]interface{}{
		"asset_id":        asset.ID,
		"value_reporting": asset.ValueReporting,
		"exchange_rate":   asset.ExchangeRate,
	})
	return &asset, nil
}

// UpdateGlobalAsset replaces an asset's editable fields and revalues it.
func (s *Service) UpdateGlobalAsset(ctx context.Context, id string, in GlobalAssetInput) (*domain.GlobalAsset, error) {
	existing, err := s.assets.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.validateAsset(&in); err != nil {
		return nil, err
	}

	asset := *existing
	asset.Name = in.Name
	asset.Category = in.Category
	asset.Currency = in.Currency
	asset.OriginalValue = in.OriginalValue
	if err := s.revalue(&asset); err != nil {
		return nil, err
	}
	if err := s.assets.Upsert(asset); err != nil {
		return nil, err
	}

	s.emitter.Emit(events.AssetRevalued, "portfolio", map[string]interface{}{
		"asset_id":        asset.ID,
		"value_reporting": asset.ValueReporting,
		"exchange_rate":   asset.ExchangeRate,
	})
	return &asset, nil
}

// DeleteGlobalAsset removes a global asset.
func (s *Service) DeleteGlobalAsset(ctx context.Context, id string) error {
	return s.assets.Delete(id)
}

// mutate runs fn and the re-aggregation of portfolioID in one transaction.
func (s *Service) mutate(ctx context.Context, portfolioID string, fn func(tx *sql.Tx) error) (domain.Totals, error) {
	var totals domain.Totals
	err := database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		var err error
		totals, err = s.reaggregate(tx, portfolioID)
		return err
	})
	return totals, err
}

// reaggregate recomputes and writes a portfolio's totals inside tx.
func (s *Service) reaggregate(tx *sql.Tx, portfolioID string) (domain.Totals, error) {
	positions, err := s.positions.WithTx(tx).GetByPortfolio(portfolioID)
	if err != nil {
		return domain.Totals{}, err
	}

	agg := s.aggregator.Aggregate(positions)
	if err := s.portfolios.WithTx(tx).UpdateTotals(portfolioID, agg.Totals, s.now()); err != nil {
		return domain.Totals{}, err
	}
	return agg.Totals, nil
}

func (s *Service) revalue(asset *domain.GlobalAsset) error {
	err := s.revaluer.Revalue(asset)
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrStaleRate) {
		s.log.Warn().Err(err).Str("asset", asset.Name).Msg("Valuing global asset with stale rate")
		return nil
	}
	if errors.Is(err, domain.ErrUnknownCurrency) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return err
}

func (s *Service) validatePosition(in *PositionInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Ticker = strings.ToUpper(strings.TrimSpace(in.Ticker))
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Type = domain.InstrumentType(strings.ToUpper(strings.TrimSpace(string(in.Type))))
	if in.Currency == "" {
		in.Currency = s.reporting
	}
	if in.Type == "" {
		in.Type = domain.InstrumentOther
	}

	switch {
	case in.PortfolioID == "":
		return fmt.Errorf("%w: portfolio_id is required", domain.ErrInvalidInput)
	case in.Name == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case len(in.Currency) != 3:
		return fmt.Errorf("%w: currency must be a 3-letter code", domain.ErrInvalidInput)
	}

	for field, v := range map[string]float64{"quantity": in.Quantity, "purchase_price": in.PurchasePrice, "current_price": in.CurrentPrice} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be a non-negative number", domain.ErrInvalidInput, field)
		}
	}
	return nil
}

func (s *Service) validateAsset(in *GlobalAssetInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))

	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	case len(in.Currency) != 3:
		return fmt.Errorf("%w: currency must be a 3-letter code", domain.ErrInvalidInput)
	case in.OriginalValue < 0 || math.IsNaN(in.OriginalValue) || math.IsInf(in.OriginalValue, 0):
		return fmt.Errorf("%w: original_value must be a non-negative number", domain.ErrInvalidInput)
	}
	return nil
}

func (s *Service) positionChanged(p domain.Position, action string, totals domain.Totals) {
	s.emitter.Emit(events.PositionChanged, "portfolio", map[string]interface{}{
		"portfolio_id": p.PortfolioID,
		"position_id":  p.ID,
		"action":       action,
	})
	s.emitter.Emit(events.PortfolioRevalued, "portfolio", totalsEventData(p.PortfolioID, totals))
}

func totalsEventData(portfolioID string, t domain.Totals) map[string]interface{} {
	return map[string]interface{}{
		"portfolio_id":   portfolioID,
		"total_value":    t.TotalValue,
		"total_invested": t.TotalInvested,
		"total_gain":     t.TotalGain,
		"gain_percent":   t.GainPercent,
	}
}
