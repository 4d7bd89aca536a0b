package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/performance"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type history []domain.HistorySnapshot

func (h history) GetHistory(context.Context, string, time.Time, time.Time) ([]domain.HistorySnapshot, error) {
	return h, nil
}

type totals struct{ err error }

func (t totals) GetPortfolioTotals(_ context.Context, id string) (*portfolio.TotalsResult, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &portfolio.TotalsResult{PortfolioID: id, Totals: domain.Totals{TotalValue: 110, TotalInvested: 100, TotalGain: 10}}, nil
}

func newRouter(h history, t totals) *chi.Mux {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	r := chi.NewRouter()
	NewHandler(performance.NewAnalyzer(h, t, log), log).RegisterRoutes(r)
	return r
}

func TestHandleGetPerformance(t *testing.T) {
	r := newRouter(history{
		{PortfolioID: "p1", Date: "2026-01-02", TotalValue: 100, TotalInvested: 100},
		{PortfolioID: "p1", Date: "2026-02-02", TotalValue: 120, TotalInvested: 100, TotalGain: 20, AccumulatedRateA: 10},
	}, totals{})

	req := httptest.NewRequest(http.MethodGet, "/portfolios/p1/performance?period=ALL", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data     performance.Performance `json:"data"`
		Metadata map[string]interface{}  `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 20, body.Data.AccumulatedReturn, 1e-9)
	assert.InDelta(t, 200, body.Data.BenchmarkRatio, 1e-9)
	assert.Equal(t, false, body.Metadata["provisional"])
	assert.Len(t, body.Data.Monthly, 2)
}

func TestHandleGetPerformance_Provisional(t *testing.T) {
	r := newRouter(history{}, totals{})

	req := httptest.NewRequest(http.MethodGet, "/portfolios/p1/performance?period=3M", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"provisional":true`)
}

func TestHandleGetPerformance_Errors(t *testing.T) {
	r := newRouter(history{}, totals{err: domain.ErrNotFound})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/portfolios/p1/performance?period=7W", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/portfolios/missing/performance", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
