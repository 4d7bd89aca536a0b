package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/portfolio"
	"github.com/aristath/wealth/internal/modules/sensitivity"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type positions map[string][]domain.Position

func (p positions) GetPositions(_ context.Context, id string) ([]domain.Position, error) {
	if list, ok := p[id]; ok {
		return list, nil
	}
	return nil, domain.ErrNotFound
}

func TestHandleGetSensitivity(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	p := domain.Position{ID: "a", Name: "Tesouro", Type: domain.InstrumentTreasury, Quantity: 1, PurchasePrice: 100, CurrentPrice: 110, Currency: "BRL"}
	p.Recompute()

	svc := sensitivity.NewService(
		positions{"p1": {p}},
		portfolio.NewAggregator(nil, "BRL", log),
		sensitivity.NewAnalyzer(nil, 1, log),
		log,
	)
	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/portfolios/p1/sensitivity", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Data     sensitivity.Result     `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data.Assets, 1)
	assert.InDelta(t, 10, body.Data.Assets[0].Contribution, 1e-9)
	assert.Equal(t, 1.0, body.Data.Assets[0].Volatility)
	assert.Equal(t, float64(1), body.Metadata["estimated"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/portfolios/nope/sensitivity", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
