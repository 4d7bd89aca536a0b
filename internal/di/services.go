// Package di provides dependency injection for services.
package di

import (
	"context"
	"fmt"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/clients/alpaca"
	"github.com/aristath/wealth/internal/clients/analysisfeed"
	"github.com/aristath/wealth/internal/clients/bcb"
	"github.com/aristath/wealth/internal/clients/exchangerate"
	"github.com/aristath/wealth/internal/config"
	"github.com/aristath/wealth/internal/domain"
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
	"github.com/rs/zerolog"
)

// InitializeServices creates every service over the opened databases.
// Order matters: the rate cache comes first because valuation depends on it.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// ==========================================
	// STEP 1: Repositories and events
	// ==========================================
	container.ClientDataRepo = clientdata.NewRepository(container.ClientDataDB.Conn())
	container.LedgerRepo = ledger.NewRepository(container.PortfolioDB.Conn(), log)
	container.GlobalAssetRepo = portfolio.NewGlobalAssetRepository(container.PortfolioDB.Conn(), log)

	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// ==========================================
	// STEP 2: Currency
	// ==========================================
	rateFeed := exchangerate.NewClient(cfg.Feeds.ExchangeRateURL, container.ClientDataRepo, log)
	container.RateCache = currency.NewRateCache(rateFeed, container.ClientDataRepo, currency.Config{
		ReportingCurrency: cfg.ReportingCurrency,
		RefreshInterval:   cfg.RateRefreshInterval,
		MaxAge:            cfg.RateMaxAge,
	}, log)
	container.RateCache.SetEmitter(container.EventManager)

	container.Consolidator = currency.NewConsolidator(
		container.RateCache,
		container.GlobalAssetRepo,
		cfg.MaterialityThreshold,
		container.EventManager,
		log,
	)

	// ==========================================
	// STEP 3: Portfolio
	// ==========================================
	container.Aggregator = portfolio.NewAggregator(container.RateCache, cfg.ReportingCurrency, log)
	container.PortfolioService = portfolio.NewService(
		container.PortfolioDB.Conn(),
		container.Aggregator,
		container.Consolidator,
		container.LedgerRepo,
		container.EventManager,
		cfg.ReportingCurrency,
		log,
	)

	// ==========================================
	// STEP 4: History and analytics
	// ==========================================
	benchmarkFeed := bcb.NewClient(cfg.Feeds.BCBURL, container.ClientDataRepo, log)
	container.BenchmarkService = benchmark.NewService(benchmarkFeed, log)

	container.SnapshotEngine = snapshots.NewEngine(
		container.HistoryDB.Conn(),
		container.PortfolioService,
		container.Aggregator,
		container.BenchmarkService,
		cfg.SnapshotWorkers,
		container.EventManager,
		log,
	)

	container.PerformanceAnalyzer = performance.NewAnalyzer(container.SnapshotEngine, container.PortfolioService, log)

	container.SensitivityService = sensitivity.NewService(
		container.PortfolioService,
		container.Aggregator,
		sensitivity.NewAnalyzer(analysisFeeds(cfg, container.ClientDataRepo, log), cfg.SnapshotWorkers, log),
		log,
	)

	container.CoverageService = coverage.NewService(
		container.PortfolioService,
		container.Aggregator,
		cfg.InsuranceLimit,
		cfg.InsuranceTotalLimit,
		log,
	)

	// ==========================================
	// STEP 5: Reliability
	// ==========================================
	if cfg.Backup.Enabled() {
		store, err := reliability.NewS3Store(ctx, reliability.S3Config{
			Endpoint:        cfg.Backup.Endpoint,
			Bucket:          cfg.Backup.Bucket,
			AccessKeyID:     cfg.Backup.AccessKeyID,
			SecretAccessKey: cfg.Backup.SecretAccessKey,
			Region:          cfg.Backup.Region,
		}, log)
		if err != nil {
			return fmt.Errorf("failed to create backup store: %w", err)
		}

		var sources []reliability.Source
		for _, db := range container.Databases() {
			sources = append(sources, db)
		}
		container.BackupService = reliability.NewBackupService(store, sources, cfg.DataDir, container.EventManager, log)
	} else {
		log.Info().Msg("Backups disabled: no bucket configured")
	}

	log.Info().Str("reporting_currency", cfg.ReportingCurrency).Msg("Services initialized")
	return nil
}

// analysisFeeds chains the configured volatility sources. Alpaca answers first
// when credentials are present; the JSON feed is the fallback.
func analysisFeeds(cfg *config.Config, cache *clientdata.Repository, log zerolog.Logger) domain.AnalysisFeed {
	var feeds []domain.AnalysisFeed
	if cfg.Feeds.AlpacaAPIKey != "" && cfg.Feeds.AlpacaAPISecret != "" {
		feeds = append(feeds, alpaca.NewClient(cfg.Feeds.AlpacaAPIKey, cfg.Feeds.AlpacaAPISecret, cache, log))
	}
	if cfg.Feeds.AnalysisURL != "" {
		feeds = append(feeds, analysisfeed.NewClient(analysisfeed.Config{
			URLTemplate:    cfg.Feeds.AnalysisURL,
			VolatilityPath: cfg.Feeds.AnalysisVolatilityPath,
			ChangePath:     cfg.Feeds.AnalysisChangePath,
		}, cache, log))
	}
	if len(feeds) == 0 {
		log.Info().Msg("No analysis feed configured, sensitivity uses estimated volatility")
	}
	return sensitivity.NewChainFeed(feeds...)
}
