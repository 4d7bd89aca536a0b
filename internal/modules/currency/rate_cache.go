// Package currency keeps reporting-currency exchange rates and revalues
// foreign-currency global assets against them.
package currency

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/rs/zerolog"
)

// FallbackRates are reporting-currency (BRL) values of one unit of each
// currency, used when the feed has never answered and nothing is persisted.
var FallbackRates = map[string]float64{
	"USD": 5.00,
	"EUR": 5.50,
	"GBP": 6.40,
	"CHF": 5.70,
	"JPY": 0.034,
	"CAD": 3.70,
	"AUD": 3.30,
	"ARS": 0.0055,
	"CNY": 0.70,
}

// Config controls refresh cadence and staleness.
type Config struct {
	ReportingCurrency string
	RefreshInterval   time.Duration
	MaxAge            time.Duration
}

// rateTable is an immutable set of reporting-per-unit rates.
type rateTable struct {
	rates     map[string]float64
	fetchedAt time.Time
	loadedAt  time.Time
	source    string
}

// storedTable is the persisted form of a rate table.
type storedTable struct {
	Rates     map[string]float64 `msgpack:"rates"`
	FetchedAt time.Time          `msgpack:"fetched_at"`
}

// RateStatus is one row of the current rate listing.
type RateStatus struct {
	domain.RateEntry
	Stale bool          `json:"stale"`
	Age   time.Duration `json:"age_ns"`
}

// RateCache serves exchange rates to the reporting currency. Reads are lock
// free; refreshes install a whole new table with one atomic swap.
type RateCache struct {
	feed    domain.RateFeed
	store   *clientdata.Repository
	emitter events.Emitter
	cfg     Config
	log     zerolog.Logger
	now     func() time.Time

	table     atomic.Pointer[rateTable]
	views     atomic.Int64
	refreshMu sync.Mutex
}

// NewRateCache creates a rate cache. store may be nil.
func NewRateCache(feed domain.RateFeed, store *clientdata.Repository, cfg Config, log zerolog.Logger) *RateCache {
	cfg.ReportingCurrency = strings.ToUpper(strings.TrimSpace(cfg.ReportingCurrency))
	if cfg.ReportingCurrency == "" {
		cfg.ReportingCurrency = "BRL"
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 5 * time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = time.Hour
	}
	return &RateCache{
		feed:    feed,
		store:   store,
		emitter: events.NopEmitter{},
		cfg:     cfg,
		log:     log.With().Str("service", "rate_cache").Logger(),
		now:     time.Now,
	}
}

// SetEmitter sets the emitter used for RatesRefreshed events.
func (c *RateCache) SetEmitter(emitter events.Emitter) {
	if emitter != nil {
		c.emitter = emitter
	}
}

// ReportingCurrency returns the currency all rates are quoted in.
func (c *RateCache) ReportingCurrency() string {
	return c.cfg.ReportingCurrency
}

// GetRate returns the reporting-currency value of one unit of code.
// A *domain.StaleRateError accompanies a usable entry taken from the fallback
// table or older than the configured max age.
func (c *RateCache) GetRate(code string) (domain.RateEntry, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	now := c.now()

	if code == c.cfg.ReportingCurrency {
		return domain.RateEntry{Currency: code, Rate: 1, FetchedAt: now, Source: domain.RateSourceIdentity}, nil
	}

	if t := c.table.Load(); t != nil {
		if rate, ok := t.rates[code]; ok {
			entry := domain.RateEntry{Currency: code, Rate: rate, FetchedAt: t.fetchedAt, Source: t.source}
			age := now.Sub(t.fetchedAt)
			if t.source == domain.RateSourceFallback || age > c.cfg.MaxAge {
				return entry, &domain.StaleRateError{Currency: code, Source: t.source, Age: age}
			}
			return entry, nil
		}
	}

	if rate, ok := FallbackRates[code]; ok {
		entry := domain.RateEntry{Currency: code, Rate: rate, Source: domain.RateSourceFallback}
		return entry, &domain.StaleRateError{Currency: code, Source: domain.RateSourceFallback}
	}

	return domain.RateEntry{}, fmt.Errorf("%w: %q", domain.ErrUnknownCurrency, code)
}

// Refresh fetches a new table from the feed and installs it. On failure the
// current table is kept; with no current table the persisted one is loaded,
// then the fallback table. The fetch error is returned in every failure case.
func (c *RateCache) Refresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *RateCache) refreshLocked(ctx context.Context) error {
	start := c.now()

	provided, err := c.feed.FetchTable(ctx, c.cfg.ReportingCurrency)
	if err == nil {
		var t *rateTable
		t, err = c.invert(provided)
		if err == nil {
			c.table.Store(t)
			c.persist(t)
			c.log.Info().
				Int("currencies", len(t.rates)).
				Time("fetched_at", t.fetchedAt).
				Dur("elapsed", c.now().Sub(start)).
				Msg("Exchange rates refreshed")
			c.emitter.Emit(events.RatesRefreshed, "currency", map[string]interface{}{
				"currencies": len(t.rates),
				"fetched_at": t.fetchedAt,
			})
			return nil
		}
	}

	if current := c.table.Load(); current != nil {
		c.log.Warn().Err(err).Str("source", current.source).Msg("Rate refresh failed, keeping current table")
		// Retry after the next interval, not on every read.
		c.table.Store(&rateTable{rates: current.rates, fetchedAt: current.fetchedAt, loadedAt: c.now(), source: current.source})
		return fmt.Errorf("failed to refresh rates: %w", err)
	}

	if persisted, ok := c.loadPersisted(); ok {
		c.table.Store(persisted)
		c.log.Warn().Err(err).Time("fetched_at", persisted.fetchedAt).Msg("Rate refresh failed, using persisted table")
		return fmt.Errorf("failed to refresh rates: %w", err)
	}

	c.table.Store(c.fallbackTable())
	c.log.Warn().Err(err).Msg("Rate refresh failed, using fallback rates")
	return fmt.Errorf("failed to refresh rates: %w", err)
}

// EnsureFresh refreshes when no table is loaded or the loaded one is older
// than the refresh interval. Errors leave a usable table in place.
func (c *RateCache) EnsureFresh(ctx context.Context) error {
	if !c.needsRefresh() {
		return nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	if !c.needsRefresh() {
		return nil
	}
	return c.refreshLocked(ctx)
}

func (c *RateCache) needsRefresh() bool {
	t := c.table.Load()
	return t == nil || c.now().Sub(t.loadedAt) >= c.cfg.RefreshInterval
}

// Acquire registers an active consuming view. Run refreshes only while at
// least one view is active.
func (c *RateCache) Acquire() {
	c.views.Add(1)
}

// Release unregisters a view acquired with Acquire.
func (c *RateCache) Release() {
	for {
		n := c.views.Load()
		if n <= 0 {
			return
		}
		if c.views.CompareAndSwap(n, n-1) {
			return
		}
	}
}

// ActiveViews returns the number of acquired views.
func (c *RateCache) ActiveViews() int {
	return int(c.views.Load())
}

// Run refreshes the table every refresh interval while views are active.
// It blocks until ctx is done.
func (c *RateCache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	c.log.Info().Dur("interval", c.cfg.RefreshInterval).Msg("Rate refresh loop started")
	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("Rate refresh loop stopped")
			return
		case <-ticker.C:
			if c.ActiveViews() == 0 {
				continue
			}
			if err := c.Refresh(ctx); err != nil {
				c.log.Debug().Err(err).Msg("Background refresh failed")
			}
		}
	}
}

// Rates lists every currency the cache can answer for, sorted by code.
func (c *RateCache) Rates() []RateStatus {
	codes := map[string]struct{}{c.cfg.ReportingCurrency: {}}
	for code := range FallbackRates {
		codes[code] = struct{}{}
	}
	if t := c.table.Load(); t != nil {
		for code := range t.rates {
			codes[code] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(codes))
	for code := range codes {
		sorted = append(sorted, code)
	}
	sort.Strings(sorted)

	now := c.now()
	out := make([]RateStatus, 0, len(sorted))
	for _, code := range sorted {
		entry, err := c.GetRate(code)
		if err != nil && entry.Rate == 0 {
			continue
		}
		status := RateStatus{RateEntry: entry, Stale: err != nil}
		if !entry.FetchedAt.IsZero() {
			status.Age = now.Sub(entry.FetchedAt)
		}
		out = append(out, status)
	}
	return out
}

// invert turns a foreign-per-reporting table into reporting-per-unit rates.
func (c *RateCache) invert(provided *domain.RateTable) (*rateTable, error) {
	if provided == nil || len(provided.Rates) == 0 {
		return nil, fmt.Errorf("feed returned an empty rate table")
	}

	rates := make(map[string]float64, len(provided.Rates))
	for code, v := range provided.Rates {
		code = strings.ToUpper(code)
		if code == c.cfg.ReportingCurrency || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			continue
		}
		rates[code] = 1 / v
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("feed returned no usable rates")
	}

	fetchedAt := provided.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = c.now()
	}
	return &rateTable{rates: rates, fetchedAt: fetchedAt, loadedAt: c.now(), source: domain.RateSourceFeed}, nil
}

func (c *RateCache) fallbackTable() *rateTable {
	rates := make(map[string]float64, len(FallbackRates))
	for code, v := range FallbackRates {
		rates[code] = v
	}
	now := c.now()
	return &rateTable{rates: rates, fetchedAt: now, loadedAt: now, source: domain.RateSourceFallback}
}

func (c *RateCache) storeKey() string {
	return "table." + c.cfg.ReportingCurrency
}

func (c *RateCache) persist(t *rateTable) {
	if c.store == nil {
		return
	}
	err := c.store.Store(clientdata.TableExchangeRate, c.storeKey(), storedTable{Rates: t.rates, FetchedAt: t.fetchedAt}, clientdata.TTLRateTable)
	if err != nil {
		c.log.Warn().Err(err).Msg("Failed to persist rate table")
	}
}

func (c *RateCache) loadPersisted() (*rateTable, bool) {
	if c.store == nil {
		return nil, false
	}
	var stored storedTable
	found, err := c.store.Get(clientdata.TableExchangeRate, c.storeKey(), &stored)
	if err != nil || !found || len(stored.Rates) == 0 {
		return nil, false
	}
	return &rateTable{rates: stored.Rates, fetchedAt: stored.FetchedAt, loadedAt: c.now(), source: domain.RateSourceCache}, true
}
