package currency

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var quietLog = zerolog.New(nil).Level(zerolog.Disabled)

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) FetchTable(ctx context.Context, base string) (*domain.RateTable, error) {
	args := m.Called(ctx, base)
	if t := args.Get(0); t != nil {
		return t.(*domain.RateTable), args.Error(1)
	}
	return nil, args.Error(1)
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestCache(feed domain.RateFeed, store *clientdata.Repository) (*RateCache, *clock) {
	clk := &clock{t: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	cache := NewRateCache(feed, store, Config{
		ReportingCurrency: "BRL",
		RefreshInterval:   5 * time.Minute,
		MaxAge:            time.Hour,
	}, quietLog)
	cache.now = clk.Now
	return cache, clk
}

func TestGetRate_ReportingCurrencyIsIdentity(t *testing.T) {
	cache, _ := newTestCache(new(mockFeed), nil)

	entry, err := cache.GetRate("brl")
	require.NoError(t, err)
	assert.Equal(t, 1.0, entry.Rate)
	assert.Equal(t, domain.RateSourceIdentity, entry.Source)
}

func TestRefresh_InvertsFeedRates(t *testing.T) {
	feed := new(mockFeed)
	cache, clk := newTestCache(feed, nil)
	feed.On("FetchTable", mock.Anything, "BRL").Return(&domain.RateTable{
		Base:      "BRL",
		Rates:     map[string]float64{"USD": 0.2, "EUR": 0.18, "BRL": 1, "XXX": 0},
		FetchedAt: clk.Now(),
	}, nil)

	require.NoError(t, cache.Refresh(context.Background()))

	usd, err := cache.GetRate("USD")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, usd.Rate, 1e-9)
	assert.Equal(t, domain.RateSourceFeed, usd.Source)

	eur, err := cache.GetRate("EUR")
	require.NoError(t, err)
	assert.InDelta(t, 1/0.18, eur.Rate, 1e-9)

	_, err = cache.GetRate("XXX")
	assert.ErrorIs(t, err, domain.ErrUnknownCurrency, "zero rates are dropped")
}

func TestGetRate_StaleAfterMaxAge(t *testing.T) {
	feed := new(mockFeed)
	cache, clk := newTestCache(feed, nil)
	feed.On("FetchTable", mock.Anything, "BRL").Return(&domain.RateTable{
		Rates:     map[string]float64{"USD": 0.2},
		FetchedAt: clk.Now(),
	}, nil)
	require.NoError(t, cache.Refresh(context.Background()))

	clk.Advance(2 * time.Hour)

	entry, err := cache.GetRate("USD")
	var stale *domain.StaleRateError
	require.ErrorAs(t, err, &stale)
	assert.Equal(t, "USD", stale.Currency)
	assert.Equal(t, 2*time.Hour, stale.Age)
	assert.InDelta(t, 5.0, entry.Rate, 1e-9, "stale entry is still usable")
}

func TestGetRate_FallbackBeforeAnyRefresh(t *testing.T) {
	cache, _ := newTestCache(new(mockFeed), nil)

	entry, err := cache.GetRate("USD")
	assert.ErrorIs(t, err, domain.ErrStaleRate)
	assert.Equal(t, 5.00, entry.Rate)
	assert.Equal(t, domain.RateSourceFallback, entry.Source)

	_, err = cache.GetRate("ZZZ")
	assert.ErrorIs(t, err, domain.ErrUnknownCurrency)
}

func TestRefresh_FailureKeepsCurrentTable(t *testing.T) {
	feed := new(mockFeed)
	cache, clk := newTestCache(feed, nil)
	feed.On("FetchTable", mock.Anything, "BRL").Return(&domain.RateTable{
		Rates:     map[string]float64{"USD": 0.25},
		FetchedAt: clk.Now(),
	}, nil).Once()
	feed.On("FetchTable", mock.Anything, "BRL").Return(nil, errors.New("timeout")).Once()

	require.NoError(t, cache.Refresh(context.Background()))
	err := cache.Refresh(context.Background())
	assert.ErrorContains(t, err, "timeout")

	entry, err := cache.GetRate("USD")
	require.NoError(t, err)
	assert.InDelta(t, 4.0, entry.Rate, 1e-9)
	assert.Equal(t, domain.RateSourceFeed, entry.Source)
}

func TestRefresh_ColdFailureUsesPersistedTable(t *testing.T) {
	store := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))

	okFeed := new(mockFeed)
	first, clk := newTestCache(okFeed, store)
	okFeed.On("FetchTable", mock.Anything, "BRL").Return(&domain.RateTable{
		Rates:     map[string]float64{"USD": 0.25},
		FetchedAt: clk.Now(),
	}, nil)
	require.NoError(t, first.Refresh(context.Background()))

	failing := new(mockFeed)
	failing.On("FetchTable", mock.Anything, "BRL").Return(nil, errors.New("down"))
	second, _ := newTestCache(failing, store)

	assert.Error(t, second.Refresh(context.Background()))
	entry, _ := second.GetRate("USD")
	assert.InDelta(t, 4.0, entry.Rate, 1e-9)
	assert.Equal(t, domain.RateSourceCache, entry.Source)
}

func TestRefresh_ColdFailureWithoutStoreUsesFallback(t *testing.T) {
	feed := new(mockFeed)
	feed.On("FetchTable", mock.Anything, "BRL").Return(nil, errors.New("down"))
	cache, _ := newTestCache(feed, nil)

	assert.Error(t, cache.Refresh(context.Background()))

	entry, err := cache.GetRate("EUR")
	assert.ErrorIs(t, err, domain.ErrStaleRate)
	assert.Equal(t, 5.50, entry.Rate)
	assert.Equal(t, domain.RateSourceFallback, entry.Source)
}

func TestEnsureFresh_RefreshesOnlyWhenStale(t *testing.T) {
	feed := new(mockFeed)
	cache, clk := newTestCache(feed, nil)
	feed.On("FetchTable", mock.Anything, "BRL").Return(&domain.RateTable{
		Rates:     map[string]float64{"USD": 0.2},
		FetchedAt: clk.Now(),
	}, nil)

	require.NoError(t, cache.EnsureFresh(context.Background()))
	require.NoError(t, cache.EnsureFresh(context.Background()))
	feed.AssertNumberOfCalls(t, "FetchTable", 1)

	clk.Advance(6 * time.Minute)
	require.NoError(t, cache.EnsureFresh(context.Background()))
	feed.AssertNumberOfCalls(t, "FetchTable", 2)
}

func TestAcquireRelease(t *testing.T) {
	cache, _ := newTestCache(new(mockFeed), nil)

	cache.Acquire()
	cache.Acquire()
	assert.Equal(t, 2, cache.ActiveViews())

	cache.Release()
	cache.Release()
	cache.Release()
	assert.Equal(t, 0, cache.ActiveViews(), "release never goes negative")
}

func TestGetRate_ConcurrentWithRefresh(t *testing.T) {
	feed := new(mockFeed)
	cache, clk := newTestCache(feed, nil)
	feed.On("FetchTable", mock.Anything, "BRL").Return(&domain.RateTable{
		Rates:     map[string]float64{"USD": 0.2},
		FetchedAt: clk.Now(),
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = cache.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			entry, _ := cache.GetRate("USD")
			assert.InDelta(t, 5.0, entry.Rate, 1e-9)
		}()
	}
	wg.Wait()
}

func TestRates_ListsSortedWithReportingCurrency(t *testing.T) {
	cache, _ := newTestCache(new(mockFeed), nil)

	rates := cache.Rates()
	require.NotEmpty(t, rates)

	codes := make([]string, len(rates))
	for i, r := range rates {
		codes[i] = r.Currency
	}
	assert.IsIncreasing(t, codes)
	assert.Contains(t, codes, "BRL")
	assert.Contains(t, codes, "USD")
}
