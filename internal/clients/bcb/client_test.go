package bcb

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/database"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = zerolog.New(nil).Level(zerolog.Disabled)

func sgsServer(t *testing.T, status int, body map[int]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		for code, payload := range body {
			if strings.Contains(r.URL.Path, fmt.Sprintf("bcdata.sgs.%d/", code)) {
				assert.Equal(t, "json", r.URL.Query().Get("formato"))
				assert.NotEmpty(t, r.URL.Query().Get("dataInicial"))
				_, _ = w.Write([]byte(payload))
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
	}))
}

func TestDailyRiskFree_LastNAsDecimals(t *testing.T) {
	server := sgsServer(t, http.StatusOK, map[int]string{
		SeriesCDI: `[{"data":"02/01/2026","valor":"0.050000"},{"data":"05/01/2026","valor":"0.040000"},{"data":"06/01/2026","valor":"0.030000"}]`,
	})
	defer server.Close()

	client := NewClient(server.URL, nil, quietLog)
	rates, err := client.DailyRiskFree(context.Background(), 2)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.0004, 0.0003}, rates, 1e-12)
}

func TestMonthlyInflation_SortsOldestFirst(t *testing.T) {
	server := sgsServer(t, http.StatusOK, map[int]string{
		SeriesIPCA: `[{"data":"01/03/2026","valor":"0.56"},{"data":"01/01/2026","valor":"0.16"},{"data":"01/02/2026","valor":"1,31"}]`,
	})
	defer server.Close()

	client := NewClient(server.URL, nil, quietLog)
	rates, err := client.MonthlyInflation(context.Background(), 12)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{0.0016, 0.0131, 0.0056}, rates, 1e-12)
}

func TestParseObservations_SkipsMalformedRows(t *testing.T) {
	obs, err := parseObservations([]sgsRow{
		{Data: "02/01/2026", Valor: "0.05"},
		{Data: "bad", Valor: "0.05"},
		{Data: "03/01/2026", Valor: "n/a"},
	})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 0.05, obs[0].Value)

	_, err = parseObservations([]sgsRow{{Data: "bad", Valor: "x"}})
	assert.Error(t, err)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSeries_StaleCacheOnFailure(t *testing.T) {
	cache := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))
	require.NoError(t, cache.Store(clientdata.TableBenchmark, cacheKey(SeriesCDI), cachedSeries{
		From:         day(2025, 1, 1),
		To:           day(2026, 1, 5),
		Observations: []Observation{{Date: day(2024, 12, 30), Value: 0.07}, {Date: day(2026, 1, 2), Value: 0.05}},
	}, -time.Hour))

	server := sgsServer(t, http.StatusBadGateway, nil)
	defer server.Close()

	client := NewClient(server.URL, cache, quietLog)
	client.now = func() time.Time { return day(2026, 1, 5) }
	rates, err := client.DailyRiskFree(context.Background(), 252)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.0005}, rates, 1e-12)
}

func TestSeries_FreshCacheFilteredToRange(t *testing.T) {
	cache := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))
	require.NoError(t, cache.Store(clientdata.TableBenchmark, cacheKey(SeriesIPCA), cachedSeries{
		From: day(2025, 1, 1),
		To:   day(2026, 3, 31),
		Observations: []Observation{
			{Date: day(2025, 6, 1), Value: 0.2},
			{Date: day(2026, 1, 1), Value: 0.16},
			{Date: day(2026, 2, 1), Value: 1.31},
		},
	}, time.Hour))

	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, cache, quietLog)
	obs, err := client.Series(context.Background(), SeriesIPCA, day(2026, 1, 1), day(2026, 1, 31))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, 0.16, obs[0].Value)
	assert.Zero(t, requests)
}

func TestSeries_FreshCacheOutsideRangeRefetches(t *testing.T) {
	cache := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))
	require.NoError(t, cache.Store(clientdata.TableBenchmark, cacheKey(SeriesCDI), cachedSeries{
		From:         day(2026, 1, 1),
		To:           day(2026, 1, 31),
		Observations: []Observation{{Date: day(2026, 1, 2), Value: 0.05}},
	}, time.Hour))

	server := sgsServer(t, http.StatusOK, map[int]string{
		SeriesCDI: `[{"data":"02/06/2025","valor":"0.040000"},{"data":"02/01/2026","valor":"0.050000"}]`,
	})
	defer server.Close()

	client := NewClient(server.URL, cache, quietLog)
	obs, err := client.Series(context.Background(), SeriesCDI, day(2025, 6, 1), day(2026, 1, 31))
	require.NoError(t, err)
	assert.Len(t, obs, 2)

	var stored cachedSeries
	found, err := cache.GetIfFresh(clientdata.TableBenchmark, cacheKey(SeriesCDI), &stored)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, stored.covers(day(2025, 6, 1), day(2026, 1, 31)))
}

func TestSeries_ErrorWithoutCache(t *testing.T) {
	server := sgsServer(t, http.StatusBadGateway, nil)
	defer server.Close()

	client := NewClient(server.URL, nil, quietLog)
	_, err := client.MonthlyInflation(context.Background(), 12)
	assert.Error(t, err)
}
