package domain

import (
	"context"
	"time"
)

// RateTable is a feed response: foreign units per one Base unit.
type RateTable struct {
	Base      string             `json:"base" msgpack:"base"`
	Rates     map[string]float64 `json:"rates" msgpack:"rates"`
	FetchedAt time.Time          `json:"fetched_at" msgpack:"fetched_at"`
}

// RateFeed fetches a rate table for a base currency.
type RateFeed interface {
	FetchTable(ctx context.Context, base string) (*RateTable, error)
}

// RateProvider returns the reporting-currency value of one unit of a currency.
// A *StaleRateError is returned alongside a usable entry.
type RateProvider interface {
	GetRate(code string) (RateEntry, error)
}

// BenchmarkFeed returns benchmark period rates as decimals, oldest first.
type BenchmarkFeed interface {
	// DailyRiskFree returns the last n daily risk-free reference rates.
	DailyRiskFree(ctx context.Context, n int) ([]float64, error)
	// MonthlyInflation returns the last n monthly inflation rates.
	MonthlyInflation(ctx context.Context, n int) ([]float64, error)
}

// Analysis is what an analysis feed knows about a ticker.
type Analysis struct {
	Ticker        string    `json:"ticker" msgpack:"ticker"`
	Volatility    float64   `json:"volatility" msgpack:"volatility"` // annualized, percent
	ChangePercent *float64  `json:"change_percent,omitempty" msgpack:"change_percent"`
	AsOf          time.Time `json:"as_of" msgpack:"as_of"`
}

// AnalysisFeed returns volatility and recent price change for a ticker.
type AnalysisFeed interface {
	Analyze(ctx context.Context, ticker string) (*Analysis, error)
}
