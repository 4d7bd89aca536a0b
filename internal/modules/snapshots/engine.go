// Package snapshots writes one history record per portfolio per calendar date
// and serves the resulting time series.
package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/aristath/wealth/internal/modules/benchmark"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/aristath/wealth/internal/work"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/rs/zerolog"
)

// PortfolioSource is the portfolio side the engine reads from and writes the
// benchmark ratio back to.
type PortfolioSource interface {
	ListPortfolios(ctx context.Context) ([]domain.Portfolio, error)
	GetPositions(ctx context.Context, portfolioID string) ([]domain.Position, error)
	SetBenchmarkRatio(ctx context.Context, portfolioID string, ratio float64) error
}

// BenchmarkSource provides the accumulated benchmark rates for a run.
type BenchmarkSource interface {
	Current(ctx context.Context) benchmark.Rates
}

// Report summarizes one snapshot run.
type Report struct {
	Date      string            `json:"date"`
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
	Benchmark benchmark.Rates   `json:"benchmark"`
	Elapsed   time.Duration     `json:"elapsed_ns"`
}

// Engine computes and stores history snapshots.
type Engine struct {
	historyDB  *sql.DB
	history    *HistoryRepository
	portfolios PortfolioSource
	aggregator *portfolio.Aggregator
	benchmarks BenchmarkSource
	pool       *work.Pool
	emitter    events.Emitter
	log        zerolog.Logger
	now        func() time.Time
}

// NewEngine creates a snapshot engine over history.db. workers bounds how many
// portfolios are snapshotted at once.
func NewEngine(
	historyDB *sql.DB,
	portfolios PortfolioSource,
	aggregator *portfolio.Aggregator,
	benchmarks BenchmarkSource,
	workers int,
	emitter events.Emitter,
	log zerolog.Logger,
) *Engine {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Engine{
		historyDB:  historyDB,
		history:    NewHistoryRepository(historyDB, log),
		portfolios: portfolios,
		aggregator: aggregator,
		benchmarks: benchmarks,
		pool:       work.NewPool(workers),
		emitter:    emitter,
		log:        log.With().Str("service", "snapshot_engine").Logger(),
		now:        time.Now,
	}
}

// History returns the repository the engine writes to.
func (e *Engine) History() *HistoryRepository {
	return e.history
}

// Snapshot writes the snapshot dated asOf for every portfolio.
//
// Portfolios are processed independently; a failure is recorded in the report
// and the rest continue. When any portfolio failed the report is returned
// together with a *domain.PartialBatchFailure. Re-running a date that already
// has snapshots overwrites them with the same values.
func (e *Engine) Snapshot(ctx context.Context, asOf time.Time) (*Report, error) {
	start := e.now()
	date := asOf.Format(domain.DateLayout)

	portfolios, err := e.portfolios.ListPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	rates := e.benchmarks.Current(ctx)
	report := &Report{Date: date, Total: len(portfolios), Benchmark: rates}

	e.log.Info().
		Str("date", date).
		Int("portfolios", len(portfolios)).
		Int("workers", e.pool.Workers()).
		Msg("Starting snapshot run")

	results := work.Run(ctx, e.pool, portfolios, func(ctx context.Context, p domain.Portfolio) (*domain.HistorySnapshot, error) {
		return e.snapshotOne(ctx, p.ID, date, rates)
	})

	failed := make(map[string]error)
	for _, res := range results {
		if res.Err != nil {
			failed[res.Item.ID] = res.Err
			e.log.Error().Err(res.Err).Str("portfolio_id", res.Item.ID).Str("date", date).Msg("Snapshot failed")
			continue
		}
		report.Succeeded++
	}
	report.Failed = len(failed)
	report.Elapsed = e.now().Sub(start)

	if len(failed) > 0 {
		report.Errors = make(map[string]string, len(failed))
		for id, err := range failed {
			report.Errors[id] = err.Error()
		}
	}

	e.log.Info().
		Str("date", date).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Bool("benchmark_estimated", rates.Estimated).
		Dur("elapsed", report.Elapsed).
		Msg("Snapshot run completed")

	e.emitter.Emit(events.SnapshotCompleted, "snapshots", map[string]interface{}{
		"date":      date,
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	})

	if len(failed) > 0 {
		return report, &domain.PartialBatchFailure{Total: report.Total, Failed: failed}
	}
	return report, nil
}

func (e *Engine) snapshotOne(ctx context.Context, portfolioID, date string, rates benchmark.Rates) (*domain.HistorySnapshot, error) {
	positions, err := e.portfolios.GetPositions(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}

	agg := e.aggregator.Aggregate(positions)
	for _, skipped := range agg.Skipped {
		e.log.Warn().
			Str("portfolio_id", portfolioID).
			Str("position_id", skipped.ID).
			Str("reason", skipped.Reason).
			Msg("Position left out of snapshot")
	}

	snap := domain.HistorySnapshot{
		PortfolioID:      portfolioID,
		Date:             date,
		TotalValue:       agg.Totals.TotalValue,
		TotalInvested:    agg.Totals.TotalInvested,
		TotalGain:        agg.Totals.TotalGain,
		GainPercent:      agg.Totals.GainPercent,
		AccumulatedRateA: rates.A,
		AccumulatedRateB: rates.B,
		CreatedAt:        e.now(),
	}

	err = database.WithTransactionContext(ctx, e.historyDB, func(tx *sql.Tx) error {
		repo := e.history.WithTx(tx)
		latest, err := repo.LatestDate(portfolioID)
		if err != nil {
			return err
		}
		if latest != "" && date < latest {
			return fmt.Errorf("%w: %s is before %s", domain.ErrSnapshotOutOfOrder, date, latest)
		}
		return repo.Upsert(snap)
	})
	if err != nil {
		return nil, err
	}

	ratio := formulas.Percent(snap.GainPercent, rates.A)
	if err := e.portfolios.SetBenchmarkRatio(ctx, portfolioID, ratio); err != nil {
		e.log.Warn().Err(err).Str("portfolio_id", portfolioID).Msg("Failed to store benchmark ratio")
	}

	return &snap, nil
}

// GetHistory returns a portfolio's snapshots between from and to inclusive,
// oldest first. Zero times are open bounds.
func (e *Engine) GetHistory(ctx context.Context, portfolioID string, from, to time.Time) ([]domain.HistorySnapshot, error) {
	var fromDate, toDate string
	if !from.IsZero() {
		fromDate = from.Format(domain.DateLayout)
	}
	if !to.IsZero() {
		toDate = to.Format(domain.DateLayout)
	}
	return e.history.List(portfolioID, fromDate, toDate)
}
