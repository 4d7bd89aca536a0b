package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRates map[string]domain.RateEntry

func (f fakeRates) GetRate(code string) (domain.RateEntry, error) {
	entry, ok := f[code]
	if !ok {
		return domain.RateEntry{}, domain.ErrUnknownCurrency
	}
	if entry.Source == domain.RateSourceFallback {
		return entry, &domain.StaleRateError{Currency: code, Source: entry.Source}
	}
	return entry, nil
}

type memoryAssets struct {
	assets  []domain.GlobalAsset
	writes  map[string]float64
	failIDs map[string]bool
}

func (m *memoryAssets) ListGlobalAssets() ([]domain.GlobalAsset, error) {
	return m.assets, nil
}

func (m *memoryAssets) UpdateValuation(id string, value, rate float64, _ time.Time) error {
	if m.failIDs[id] {
		return errors.New("disk full")
	}
	if m.writes == nil {
		m.writes = map[string]float64{}
	}
	m.writes[id] = value
	return nil
}

type recordingEmitter struct {
	types []events.EventType
}

func (r *recordingEmitter) Emit(t events.EventType, _ string, _ map[string]interface{}) {
	r.types = append(r.types, t)
}

func TestIsMaterial(t *testing.T) {
	assert.False(t, IsMaterial(1000, 1000.05, 0.0001), "0.005% change is immaterial")
	assert.True(t, IsMaterial(1000, 1000.2, 0.0001))
	assert.True(t, IsMaterial(0, 1, 0.0001))
	assert.False(t, IsMaterial(0, 0, 0.0001))
}

func TestConsolidate_Threshold(t *testing.T) {
	c := NewConsolidator(fakeRates{}, &memoryAssets{}, 0, nil, quietLog)
	asset := domain.GlobalAsset{OriginalValue: 1000, ValueReporting: 5000, ExchangeRate: 5}

	value, changed := c.Consolidate(asset, 5.0004)
	assert.InDelta(t, 5000.4, value, 1e-9)
	assert.False(t, changed)

	value, changed = c.Consolidate(asset, 5.1)
	assert.InDelta(t, 5100, value, 1e-9)
	assert.True(t, changed)
}

func TestConsolidate_NeverValuedAlwaysChanges(t *testing.T) {
	c := NewConsolidator(fakeRates{}, &memoryAssets{}, 0, nil, quietLog)

	_, changed := c.Consolidate(domain.GlobalAsset{OriginalValue: 0}, 5)
	assert.True(t, changed)
}

func TestConsolidateAll(t *testing.T) {
	rates := fakeRates{
		"BRL": {Currency: "BRL", Rate: 1, Source: domain.RateSourceIdentity},
		"USD": {Currency: "USD", Rate: 5.2, Source: domain.RateSourceFeed},
		"EUR": {Currency: "EUR", Rate: 5.5, Source: domain.RateSourceFallback},
	}
	store := &memoryAssets{assets: []domain.GlobalAsset{
		{ID: "house", Currency: "BRL", OriginalValue: 800000, ValueReporting: 800000, ExchangeRate: 1},
		{ID: "brokerage", Currency: "USD", OriginalValue: 1000, ValueReporting: 5000, ExchangeRate: 5},
		{ID: "savings", Currency: "EUR", OriginalValue: 100, ValueReporting: 0, ExchangeRate: 0},
		{ID: "gold", Currency: "XAU", OriginalValue: 1, ValueReporting: 10000, ExchangeRate: 10000},
	}}
	emitter := &recordingEmitter{}
	c := NewConsolidator(rates, store, 0.0001, emitter, quietLog)

	report, err := c.ConsolidateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, report.Checked)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Unchanged)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Stale)

	assert.InDelta(t, 5200, store.writes["brokerage"], 1e-9)
	assert.InDelta(t, 550, store.writes["savings"], 1e-9)
	assert.NotContains(t, store.writes, "house")
	assert.NotContains(t, store.writes, "gold")
	assert.Equal(t, []events.EventType{events.AssetRevalued, events.AssetRevalued}, emitter.types)
}

func TestConsolidateAll_WriteFailuresAreJoined(t *testing.T) {
	rates := fakeRates{"USD": {Currency: "USD", Rate: 5.2, Source: domain.RateSourceFeed}}
	store := &memoryAssets{
		assets: []domain.GlobalAsset{
			{ID: "a", Currency: "USD", OriginalValue: 10, ValueReporting: 50, ExchangeRate: 5},
			{ID: "b", Currency: "USD", OriginalValue: 20, ValueReporting: 100, ExchangeRate: 5},
		},
		failIDs: map[string]bool{"a": true},
	}
	c := NewConsolidator(rates, store, 0, nil, quietLog)

	report, err := c.ConsolidateAll(context.Background())
	assert.ErrorContains(t, err, "asset a")
	assert.Equal(t, 1, report.Updated)
	assert.InDelta(t, 104, store.writes["b"], 1e-9)
}

func TestRevalue(t *testing.T) {
	rates := fakeRates{
		"USD": {Currency: "USD", Rate: 5, Source: domain.RateSourceFeed},
		"EUR": {Currency: "EUR", Rate: 5.5, Source: domain.RateSourceFallback},
	}
	c := NewConsolidator(rates, &memoryAssets{}, 0, nil, quietLog)

	asset := domain.GlobalAsset{Currency: "USD", OriginalValue: 10}
	require.NoError(t, c.Revalue(&asset))
	assert.Equal(t, 50.0, asset.ValueReporting)
	assert.Equal(t, 5.0, asset.ExchangeRate)
	assert.False(t, asset.UpdatedAt.IsZero())

	eur := domain.GlobalAsset{Currency: "EUR", OriginalValue: 10}
	assert.ErrorIs(t, c.Revalue(&eur), domain.ErrStaleRate)
	assert.Equal(t, 55.0, eur.ValueReporting, "stale rate still applies")

	unknown := domain.GlobalAsset{Currency: "XAU", OriginalValue: 1}
	assert.ErrorIs(t, c.Revalue(&unknown), domain.ErrUnknownCurrency)
	assert.Zero(t, unknown.ValueReporting)
}
