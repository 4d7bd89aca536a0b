package snapshots

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/benchmark"
	"github.com/aristath/wealth/internal/modules/portfolio"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = zerolog.New(nil).Level(zerolog.Disabled)

type memoryPortfolios struct {
	mu        sync.Mutex
	list      []domain.Portfolio
	positions map[string][]domain.Position
	failing   map[string]bool
	ratios    map[string]float64
}

func (m *memoryPortfolios) ListPortfolios(context.Context) ([]domain.Portfolio, error) {
	return m.list, nil
}

func (m *memoryPortfolios) GetPositions(_ context.Context, id string) ([]domain.Position, error) {
	if m.failing[id] {
		return nil, errors.New("database is locked")
	}
	return m.positions[id], nil
}

func (m *memoryPortfolios) SetBenchmarkRatio(_ context.Context, id string, ratio float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ratios == nil {
		m.ratios = map[string]float64{}
	}
	m.ratios[id] = ratio
	return nil
}

type fixedBenchmark benchmark.Rates

func (f fixedBenchmark) Current(context.Context) benchmark.Rates {
	return benchmark.Rates(f)
}

func pos(id string, qty, purchase, current float64) domain.Position {
	p := domain.Position{ID: id, Quantity: qty, PurchasePrice: purchase, CurrentPrice: current, Currency: "BRL"}
	p.Recompute()
	return p
}

func newEngine(t *testing.T, source *memoryPortfolios) *Engine {
	t.Helper()
	db := testingpkg.NewMemoryDB(t, database.NameHistory)
	return NewEngine(db, source, portfolio.NewAggregator(nil, "BRL", quietLog), fixedBenchmark{A: 10, B: 4}, 2, nil, quietLog)
}

func twoPortfolios() *memoryPortfolios {
	return &memoryPortfolios{
		list: []domain.Portfolio{{ID: "p1"}, {ID: "p2"}},
		positions: map[string][]domain.Position{
			"p1": {pos("a", 100, 10, 12)},
			"p2": {pos("b", 10, 100, 105), pos("c", 1, 50, 40)},
		},
	}
}

func TestSnapshot_WritesOneRowPerPortfolio(t *testing.T) {
	source := twoPortfolios()
	engine := newEngine(t, source)
	day := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)

	report, err := engine.Snapshot(context.Background(), day)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", report.Date)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Zero(t, report.Failed)

	snap, err := engine.History().Get("p1", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, 1200.0, snap.TotalValue)
	assert.Equal(t, 1000.0, snap.TotalInvested)
	assert.Equal(t, 200.0, snap.TotalGain)
	assert.InDelta(t, 20, snap.GainPercent, 1e-9)
	assert.Equal(t, 10.0, snap.AccumulatedRateA)
	assert.Equal(t, 4.0, snap.AccumulatedRateB)

	assert.InDelta(t, 200, source.ratios["p1"], 1e-9, "20% gain against a 10% benchmark")
}

func TestSnapshot_IsIdempotent(t *testing.T) {
	engine := newEngine(t, twoPortfolios())
	day := time.Date(2026, 3, 10, 21, 0, 0, 0, time.UTC)

	_, err := engine.Snapshot(context.Background(), day)
	require.NoError(t, err)
	first, err := engine.History().Get("p2", "2026-03-10")
	require.NoError(t, err)

	_, err = engine.Snapshot(context.Background(), day)
	require.NoError(t, err)

	for _, id := range []string{"p1", "p2"} {
		n, err := engine.History().Count(id)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	second, err := engine.History().Get("p2", "2026-03-10")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSnapshot_PartialFailureContinues(t *testing.T) {
	source := twoPortfolios()
	source.list = append(source.list, domain.Portfolio{ID: "broken"})
	source.failing = map[string]bool{"broken": true}
	engine := newEngine(t, source)

	report, err := engine.Snapshot(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))

	var partial *domain.PartialBatchFailure
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, 3, partial.Total)
	assert.Contains(t, partial.Failed, "broken")

	require.NotNil(t, report)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Errors["broken"], "database is locked")
}

func TestSnapshot_RejectsEarlierDate(t *testing.T) {
	engine := newEngine(t, twoPortfolios())

	_, err := engine.Snapshot(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = engine.Snapshot(context.Background(), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrSnapshotOutOfOrder)

	_, err = engine.History().Get("p1", "2026-03-09")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSnapshot_ZeroBenchmarkGivesZeroRatio(t *testing.T) {
	source := twoPortfolios()
	db := testingpkg.NewMemoryDB(t, database.NameHistory)
	engine := NewEngine(db, source, portfolio.NewAggregator(nil, "BRL", quietLog), fixedBenchmark{Estimated: true}, 1, nil, quietLog)

	_, err := engine.Snapshot(context.Background(), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, source.ratios["p1"])
}

func TestGetHistory_FiltersByRange(t *testing.T) {
	engine := newEngine(t, twoPortfolios())
	ctx := context.Background()
	for _, day := range []int{1, 5, 9} {
		_, err := engine.Snapshot(ctx, time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}

	all, err := engine.GetHistory(ctx, "p1", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2026-03-01", all[0].Date)

	ranged, err := engine.GetHistory(ctx, "p1", time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, ranged, 2)
	assert.Equal(t, "2026-03-05", ranged[0].Date)
	assert.Equal(t, "2026-03-09", ranged[1].Date)
}
