// Package analysisfeed reads ticker analysis from any JSON HTTP endpoint.
// The URL template carries a {ticker} placeholder and the volatility and
// price-change fields are located with JSONPath expressions.
package analysisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/domain"
	"github.com/rs/zerolog"
)

// Default field locations.
const (
	DefaultVolatilityPath = "$.volatility"
	DefaultChangePath     = "$.change_percent"
)

// Config locates the endpoint and the fields to extract.
type Config struct {
	URLTemplate    string // e.g. https://quotes.example.com/analysis/{ticker}
	VolatilityPath string
	ChangePath     string // optional
}

// Client implements domain.AnalysisFeed.
type Client struct {
	cfg       Config
	client    *http.Client
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a JSON analysis feed client. cacheRepo may be nil.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if cfg.VolatilityPath == "" {
		cfg.VolatilityPath = DefaultVolatilityPath
	}
	return &Client{
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Second},
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "analysis-feed").Logger(),
	}
}

// Analyze fetches the document for ticker and extracts volatility (required)
// and recent change percent (optional).
func (c *Client) Analyze(ctx context.Context, ticker string) (*domain.Analysis, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("empty ticker")
	}
	if c.cfg.URLTemplate == "" {
		return nil, fmt.Errorf("analysis feed URL not configured")
	}

	key := "feed." + ticker
	if c.cacheRepo != nil {
		var cached domain.Analysis
		if found, err := c.cacheRepo.GetIfFresh(clientdata.TableAnalysis, key, &cached); err == nil && found {
			return &cached, nil
		}
	}

	doc, err := c.fetch(ctx, ticker)
	if err != nil {
		return nil, err
	}

	vol, err := extractFloat(c.cfg.VolatilityPath, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to read volatility for %s: %w", ticker, err)
	}

	analysis := &domain.Analysis{
		Ticker:     ticker,
		Volatility: vol,
		AsOf:       time.Now(),
	}

	if c.cfg.ChangePath != "" {
		change, err := extractFloat(c.cfg.ChangePath, doc)
		if err != nil {
			c.log.Debug().Err(err).Str("ticker", ticker).Msg("No price change in feed response")
		} else {
			analysis.ChangePercent = &change
		}
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableAnalysis, key, analysis, clientdata.TTLAnalysis); err != nil {
			c.log.Warn().Err(err).Str("ticker", ticker).Msg("Failed to cache analysis")
		}
	}
	return analysis, nil
}

func (c *Client) fetch(ctx context.Context, ticker string) (interface{}, error) {
	addr := strings.ReplaceAll(c.cfg.URLTemplate, "{ticker}", url.PathEscape(ticker))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analysis feed returned status %d for %s", resp.StatusCode, ticker)
	}

	var doc interface{}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return doc, nil
}

// extractFloat evaluates path against doc. A list answer yields its first
// element; numeric strings are accepted.
func extractFloat(path string, doc interface{}) (float64, error) {
	val, err := jsonpath.Get(path, doc)
	if err != nil {
		return 0, fmt.Errorf("path %q: %w", path, err)
	}
	if list, ok := val.([]interface{}); ok {
		if len(list) == 0 {
			return 0, fmt.Errorf("path %q matched nothing", path)
		}
		val = list[0]
	}

	switch v := val.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("path %q: not a number: %q", path, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("path %q: not a number: %v", path, val)
	}
}
