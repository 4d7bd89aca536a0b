// Package exchangerate fetches currency rate tables from exchangerate-api.com.
package exchangerate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public v4 endpoint.
const DefaultBaseURL = "https://api.exchangerate-api.com/v4/latest"

// Client for exchangerate-api.com
type Client struct {
	baseURL   string
	client    *http.Client
	log       zerolog.Logger
	cacheRepo *clientdata.Repository
}

// NewClient creates a new exchangerate-api.com client.
// cacheRepo is optional - if nil, caching is disabled
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log.With().Str("client", "exchangerate-api").Logger(),
		cacheRepo: cacheRepo,
	}
}

// FetchTable returns the rate table for base, quoted as foreign units per one base unit.
// Fresh cache entries are served without a request. If the API fails, a stale
// cached table is returned when available (stale data > no data); its FetchedAt
// tells the caller how old it is.
func (c *Client) FetchTable(ctx context.Context, base string) (*domain.RateTable, error) {
	base = strings.ToUpper(base)

	if c.cacheRepo != nil {
		var cached domain.RateTable
		found, err := c.cacheRepo.GetIfFresh(clientdata.TableExchangeRate, base, &cached)
		if err == nil && found {
			c.log.Debug().Str("base", base).Msg("Cache hit")
			return &cached, nil
		}
	}

	table, err := c.fetch(ctx, base)
	if err != nil {
		if stale, ok := c.getStaleFromCache(base); ok {
			c.log.Warn().
				Err(err).
				Str("base", base).
				Time("fetched_at", stale.FetchedAt).
				Msg("API failed, using stale cached rates")
			return stale, nil
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store(clientdata.TableExchangeRate, base, table, clientdata.TTLExchangeRate); err != nil {
			c.log.Warn().Err(err).Str("base", base).Msg("Failed to cache exchange rates")
		}
	}

	c.log.Info().Str("base", base).Int("currencies", len(table.Rates)).Msg("Fetched rates")
	return table, nil
}

func (c *Client) fetch(ctx context.Context, base string) (*domain.RateTable, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Rates) == 0 {
		return nil, fmt.Errorf("API returned no rates for %s", base)
	}

	return &domain.RateTable{
		Base:      base,
		Rates:     result.Rates,
		FetchedAt: time.Now(),
	}, nil
}

// getStaleFromCache retrieves a cached table even if expired.
func (c *Client) getStaleFromCache(base string) (*domain.RateTable, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var cached domain.RateTable
	found, err := c.cacheRepo.Get(clientdata.TableExchangeRate, base, &cached)
	if err != nil || !found {
		return nil, false
	}
	return &cached, true
}
