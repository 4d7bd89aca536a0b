// Package alpaca derives ticker volatility and recent price change from Alpaca daily bars.
package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/pkg/formulas"
	"github.com/rs/zerolog"
)

// lookback covers roughly one year of trading days.
const lookback = 365 * 24 * time.Hour

// minBars is the fewest closes that give a meaningful volatility.
const minBars = 20

// BarSource is the subset of the marketdata client used here.
type BarSource interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Client implements domain.AnalysisFeed on top of Alpaca market data.
type Client struct {
	bars      BarSource
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
	now       func() time.Time
}

// NewClient creates a client authenticated with the given key pair.
func NewClient(apiKey, apiSecret string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return NewClientWithSource(md, cacheRepo, log)
}

// NewClientWithSource creates a client over any bar source.
func NewClientWithSource(bars BarSource, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		bars:      bars,
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "alpaca").Logger(),
		now:       time.Now,
	}
}

// Analyze returns the annualized volatility (percent) of daily returns over the
// last year and the 5-bar rate of change of the close series.
func (c *Client) Analyze(ctx context.Context, ticker string) (*domain.Analysis, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}

	if c.cacheRepo != nil {
		var cached domain.Analysis
		found, err := c.cacheRepo.GetIfFresh(clientdata.TableAnalysis, cacheKey(ticker), &cached)
		if err == nil && found {
			return &cached, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars, err := c.bars.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     c.now().Add(-lookback),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", ticker, err)
	}
	if len(bars) < minBars {
		return nil, fmt.Errorf("not enough bars for %s: got %d, need %d", ticker, len(bars), minBars)
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	analysis := &domain.Analysis{
		Ticker:        ticker,
		Volatility:    formulas.AnnualizedVolatility(formulas.CalculateReturns(closes)) * 100,
		ChangePercent: formulas.RateOfChange(closes, formulas.DefaultChangePeriod),
		AsOf:          bars[len(bars)-1].Timestamp,
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableAnalysis, cacheKey(ticker), analysis, clientdata.TTLAnalysis); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache analysis")
		}
	}

	c.log.Debug().
		Str("ticker", ticker).
		Int("bars", len(bars)).
		Float64("volatility", analysis.Volatility).
		Msg("Analyzed ticker")
	return analysis, nil
}

func cacheKey(ticker string) string {
	return "alpaca." + ticker
}
