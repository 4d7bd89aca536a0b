/**
 * Package di provides dependency injection type definitions.
 *
 * The Container holds every long-lived dependency. It is created by Wire()
 * and handed to the HTTP server, the CLI and the scheduler.
 */
package di

import (
	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/events"
	"github.com/aristath/wealth/internal/modules/benchmark"
	"github.com/aristath/wealth/internal/modules/coverage"
	"github.com/aristath/wealth/internal/modules/currency"
	"github.com/aristath/wealth/internal/modules/ledger"
	"github.com/aristath/wealth/internal/modules/performance"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/aristath/wealth/internal/modules/sensitivity"
	"github.com/aristath/wealth/internal/modules/snapshots"
	"github.com/aristath/wealth/internal/reliability"
	"github.com/aristath/wealth/internal/scheduler"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: portfolio (positions, global assets, movements), history
 *   (daily snapshots), client_data (feed response cache)
 * - Clients: rate, benchmark and analysis feeds behind domain interfaces
 * - Services: rate cache, consolidation, portfolio, analytics
 * - Scheduler: cron jobs for snapshots, rates, cache cleanup and backups
 */
type Container struct {
	// Databases
	PortfolioDB  *database.DB
	HistoryDB    *database.DB
	ClientDataDB *database.DB

	// Repositories
	ClientDataRepo  *clientdata.Repository
	LedgerRepo      *ledger.Repository
	GlobalAssetRepo *portfolio.GlobalAssetRepository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Currency
	RateCache    *currency.RateCache
	Consolidator *currency.Consolidator

	// Portfolio and analytics
	Aggregator          *portfolio.Aggregator
	PortfolioService    *portfolio.Service
	BenchmarkService    *benchmark.Service
	SnapshotEngine      *snapshots.Engine
	PerformanceAnalyzer *performance.Analyzer
	SensitivityService  *sensitivity.Service
	CoverageService     *coverage.Service

	// Reliability; BackupService is nil when backups are not configured
	BackupService *reliability.BackupService

	Scheduler *scheduler.Scheduler
}

// Databases returns every open database, in initialization order.
func (c *Container) Databases() []*database.DB {
	var out []*database.DB
	for _, db := range []*database.DB{c.PortfolioDB, c.HistoryDB, c.ClientDataDB} {
		if db != nil {
			out = append(out, db)
		}
	}
	return out
}

// Close closes every open database.
func (c *Container) Close() {
	for _, db := range c.Databases() {
		db.Close()
	}
}

// JobInstances holds the scheduled jobs for manual triggering.
type JobInstances struct {
	DailySnapshot       scheduler.Job
	RefreshRates        scheduler.Job
	CacheCleanup        scheduler.Job
	DatabaseBackup      scheduler.Job // nil when backups are disabled
	DatabaseMaintenance scheduler.Job
}
