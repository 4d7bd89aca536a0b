package currency

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/rs/zerolog"
)

// DefaultMaterialityThreshold is the relative change below which a stored
// valuation is left untouched.
const DefaultMaterialityThreshold = 0.0001

// AssetStore reads global assets and persists their valuation.
type AssetStore interface {
	ListGlobalAssets() ([]domain.GlobalAsset, error)
	UpdateValuation(id string, valueReporting, exchangeRate float64, updatedAt time.Time) error
}

// ConsolidationReport summarizes one ConsolidateAll pass.
type ConsolidationReport struct {
	Checked   int           `json:"checked"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Stale     int           `json:"stale"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// Consolidator revalues global assets in the reporting currency.
type Consolidator struct {
	rates     domain.RateProvider
	assets    AssetStore
	threshold float64
	emitter   events.Emitter
	log       zerolog.Logger
	now       func() time.Time
}

// NewConsolidator creates a consolidator. A non-positive threshold uses the default.
func NewConsolidator(rates domain.RateProvider, assets AssetStore, threshold float64, emitter events.Emitter, log zerolog.Logger) *Consolidator {
	if threshold <= 0 {
		threshold = DefaultMaterialityThreshold
	}
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Consolidator{
		rates:     rates,
		assets:    assets,
		threshold: threshold,
		emitter:   emitter,
		log:       log.With().Str("service", "consolidator").Logger(),
		now:       time.Now,
	}
}

// IsMaterial reports whether next differs enough from stored to be written.
func IsMaterial(stored, next, threshold float64) bool {
	if stored == 0 {
		return next != 0
	}
	return math.Abs(next-stored)/math.Abs(stored) > threshold
}

// Consolidate returns the asset's value at rate and whether the stored value
// must be replaced. An asset that was never valued always changes.
func (c *Consolidator) Consolidate(asset domain.GlobalAsset, rate float64) (float64, bool) {
	value := asset.OriginalValue * rate
	if asset.ExchangeRate == 0 {
		return value, true
	}
	return value, IsMaterial(asset.ValueReporting, value, c.threshold)
}

// Revalue sets the asset's reporting value and rate from the current rate.
// A *domain.StaleRateError is returned with the asset still revalued; any
// other error leaves the asset untouched.
func (c *Consolidator) Revalue(asset *domain.GlobalAsset) error {
	entry, err := c.rates.GetRate(asset.Currency)
	if err != nil && !errors.Is(err, domain.ErrStaleRate) {
		return err
	}
	if !usableRate(entry.Rate) {
		return fmt.Errorf("%w: unusable rate %v for %s", domain.ErrUnknownCurrency, entry.Rate, asset.Currency)
	}

	asset.ExchangeRate = entry.Rate
	asset.ValueReporting = asset.OriginalValue * entry.Rate
	asset.UpdatedAt = c.now()
	return err
}

// ConsolidateAll revalues every global asset, writing only material changes.
// Unknown currencies are skipped and counted. Write failures are joined into
// the returned error; the report covers every asset either way.
func (c *Consolidator) ConsolidateAll(ctx context.Context) (ConsolidationReport, error) {
	start := c.now()
	var report ConsolidationReport

	assets, err := c.assets.ListGlobalAssets()
	if err != nil {
		return report, fmt.Errorf("failed to list global assets: %w", err)
	}

	var errs error
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++

		entry, err := c.rates.GetRate(asset.Currency)
		if err != nil {
			if !errors.Is(err, domain.ErrStaleRate) {
				c.log.Warn().Err(err).Str("asset_id", asset.ID).Str("currency", asset.Currency).Msg("No rate for asset, skipping")
				report.Skipped++
				continue
			}
			c.log.Warn().Err(err).Str("asset_id", asset.ID).Msg("Using stale rate")
			report.Stale++
		}
		if !usableRate(entry.Rate) {
			c.log.Warn().Str("asset_id", asset.ID).Float64("rate", entry.Rate).Msg("Unusable rate, skipping")
			report.Skipped++
			continue
		}

		value, changed := c.Consolidate(asset, entry.Rate)
		if !changed {
			report.Unchanged++
			continue
		}

		if err := c.assets.UpdateValuation(asset.ID, value, entry.Rate, c.now()); err != nil {
			c.log.Error().Err(err).Str("asset_id", asset.ID).Msg("Failed to write asset valuation")
			errs = errors.Join(errs, fmt.Errorf("asset %s: %w", asset.ID, err))
			continue
		}
		report.Updated++

		c.emitter.Emit(events.AssetRevalued, "currency", map[string]interface{}{
			"asset_id":        asset.ID,
			"currency":        asset.Currency,
			"previous_value":  asset.ValueReporting,
			"value_reporting": value,
			"exchange_rate":   entry.Rate,
		})
	}

	report.Elapsed = c.now().Sub(start)
	c.log.Info().
		Int("checked", report.Checked).
		Int("updated", report.Updated).
		Int("unchanged", report.Unchanged).
		Int("skipped", report.Skipped).
		Int("stale", report.Stale).
		Dur("elapsed", report.Elapsed).
		Msg("Global asset consolidation completed")

	return report, errs
}

func usableRate(rate float64) bool {
	return rate > 0 && !math.IsNaN(rate) && !math.IsInf(rate, 0)
}
