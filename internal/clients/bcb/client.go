// Package bcb fetches benchmark rate series from the Banco Central do Brasil SGS API.
package bcb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public SGS endpoint.
const DefaultBaseURL = "https://api.bcb.gov.br/dados/serie"

// SGS series codes.
const (
	SeriesCDI  = 12  // CDI daily rate, percent per day
	SeriesIPCA = 433 // IPCA monthly change, percent
)

const sgsDateLayout = "02/01/2006"

// Observation is one SGS data point.
type Observation struct {
	Date  time.Time `msgpack:"date"`
	Value float64   `msgpack:"value"` // percent, as published
}

// Client for the SGS time series API
type Client struct {
	baseURL   string
	client    *http.Client
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
	now       func() time.Time
}

// NewClient creates a new SGS client. cacheRepo is optional.
func NewClient(baseURL string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "bcb-sgs").Logger(),
		now:       time.Now,
	}
}

// DailyRiskFree returns the last n CDI daily rates as decimals, oldest first.
func (c *Client) DailyRiskFree(ctx context.Context, n int) ([]float64, error) {
	// 252 business days span roughly 365 calendar days; leave room for holidays.
	lookback := time.Duration(n)*36*time.Hour + 30*24*time.Hour
	return c.lastRates(ctx, SeriesCDI, n, lookback)
}

// MonthlyInflation returns the last n IPCA monthly rates as decimals, oldest first.
func (c *Client) MonthlyInflation(ctx context.Context, n int) ([]float64, error) {
	// IPCA is published mid-month for the previous month.
	lookback := time.Duration(n+2) * 31 * 24 * time.Hour
	return c.lastRates(ctx, SeriesIPCA, n, lookback)
}

func (c *Client) lastRates(ctx context.Context, series, n int, lookback time.Duration) ([]float64, error) {
	observations, err := c.Series(ctx, series, c.now().Add(-lookback), c.now())
	if err != nil {
		return nil, err
	}
	if len(observations) > n {
		observations = observations[len(observations)-n:]
	}

	rates := make([]float64, len(observations))
	for i, o := range observations {
		rates[i] = o.Value / 100
	}
	return rates, nil
}

// cachedSeries is a fetched window of one series.
type cachedSeries struct {
	From         time.Time     `msgpack:"from"`
	To           time.Time     `msgpack:"to"`
	Observations []Observation `msgpack:"observations"`
}

// covers reports whether the cached window contains [from, to].
func (cs cachedSeries) covers(from, to time.Time) bool {
	return !startOfDay(cs.From).After(startOfDay(from)) && !startOfDay(cs.To).Before(startOfDay(to))
}

// Series returns the observations of an SGS series between from and to, oldest first.
// A fresh cached window is used when it spans the requested range; on failure a
// stale cached copy is returned when present. Either way only observations
// inside [from, to] are returned.
func (c *Client) Series(ctx context.Context, series int, from, to time.Time) ([]Observation, error) {
	key := cacheKey(series)

	if c.cacheRepo != nil {
		var cached cachedSeries
		found, err := c.cacheRepo.GetIfFresh(clientdata.TableBenchmark, key, &cached)
		if err == nil && found && cached.covers(from, to) {
			return within(cached.Observations, from, to), nil
		}
	}

	observations, err := c.fetch(ctx, series, from, to)
	if err != nil {
		if stale, ok := c.getStaleFromCache(key); ok {
			c.log.Warn().Err(err).Int("series", series).Msg("SGS request failed, using stale cached series")
			return within(stale.Observations, from, to), nil
		}
		return nil, err
	}

	if c.cacheRepo != nil {
		entry := cachedSeries{From: from, To: to, Observations: observations}
		if err := c.cacheRepo.Store(clientdata.TableBenchmark, key, entry, clientdata.TTLBenchmark); err != nil {
			c.log.Warn().Err(err).Int("series", series).Msg("Failed to cache series")
		}
	}

	c.log.Debug().Int("series", series).Int("observations", len(observations)).Msg("Fetched series")
	return observations, nil
}

func cacheKey(series int) string {
	return fmt.Sprintf("sgs.%d", series)
}

func (c *Client) getStaleFromCache(key string) (cachedSeries, bool) {
	var cached cachedSeries
	if c.cacheRepo == nil {
		return cached, false
	}
	found, err := c.cacheRepo.Get(clientdata.TableBenchmark, key, &cached)
	if err != nil || !found {
		return cached, false
	}
	return cached, true
}

// within keeps the observations dated inside [from, to] by calendar day.
func within(observations []Observation, from, to time.Time) []Observation {
	lo, hi := startOfDay(from), startOfDay(to)
	out := make([]Observation, 0, len(observations))
	for _, o := range observations {
		d := startOfDay(o.Date)
		if d.Before(lo) || d.After(hi) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// startOfDay truncates to the UTC calendar day SGS dates are parsed in.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *Client) fetch(ctx context.Context, series int, from, to time.Time) ([]Observation, error) {
	url := fmt.Sprintf("%s/bcdata.sgs.%d/dados?formato=json&dataInicial=%s&dataFinal=%s",
		c.baseURL, series, from.Format(sgsDateLayout), to.Format(sgsDateLayout))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("SGS request for series %d failed: %w", series, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("SGS request for series %d: received status %s", series, resp.Status)
	}

	var rows []sgsRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse SGS response for series %d: %w", series, err)
	}

	return parseObservations(rows)
}

// sgsRow is the wire format: {"data":"02/01/2026","valor":"0.055131"}
type sgsRow struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// parseObservations parses SGS rows, skipping malformed ones.
// An error is returned only when no row could be parsed.
func parseObservations(rows []sgsRow) ([]Observation, error) {
	var errs error
	observations := make([]Observation, 0, len(rows))

	for _, row := range rows {
		date, err := time.Parse(sgsDateLayout, row.Data)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("invalid date %q: %w", row.Data, err))
			continue
		}
		value, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(row.Valor), ",", "."), 64)
		if err != nil {
			errs = errors.Join(errs, fmt.Errorf("invalid value %q for %s: %w", row.Valor, row.Data, err))
			continue
		}
		observations = append(observations, Observation{Date: date, Value: value})
	}

	if len(observations) == 0 && errs != nil {
		return nil, errs
	}

	sort.Slice(observations, func(i, j int) bool { return observations[i].Date.Before(observations[j].Date) })
	return observations, nil
}
