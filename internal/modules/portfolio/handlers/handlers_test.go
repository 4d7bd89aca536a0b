package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/aristath/wealth/internal/modules/ledger"
	"github.com/aristath/wealth/internal/modules/portfolio"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identityRevaluer struct{}

func (identityRevaluer) Revalue(a *domain.GlobalAsset) error {
	a.ExchangeRate = 1
	a.ValueReporting = a.OriginalValue
	return nil
}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	db := testingpkg.NewMemoryDB(t, database.NamePortfolio)
	svc := portfolio.NewService(db, portfolio.NewAggregator(nil, "BRL", log), identityRevaluer{}, ledger.NewRepository(db, log), nil, "BRL", log)

	r := chi.NewRouter()
	NewHandler(svc, log).RegisterRoutes(r)
	return r
}

func do(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var response map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	}
	return w, response
}

func TestPortfolioFlow(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, http.MethodPost, "/portfolios", `{"name":"Main"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := resp["data"].(map[string]interface{})["id"].(string)

	w, resp = do(t, router, http.MethodPost, "/portfolios/"+id+"/positions",
		`{"name":"PETR4","type":"ACAO","quantity":100,"purchase_price":10,"current_price":12}`)
	require.Equal(t, http.StatusCreated, w.Code)
	positionID := resp["data"].(map[string]interface{})["id"].(string)

	w, resp = do(t, router, http.MethodGet, "/portfolios/"+id+"/totals", "")
	require.Equal(t, http.StatusOK, w.Code)
	totals := resp["data"].(map[string]interface{})
	value := totals["total_value"].(map[string]interface{})
	assert.Equal(t, 1200.0, value["value"])
	assert.Equal(t, "BRL", value["currency"])
	assert.NotEmpty(t, value["formatted"])
	assert.InDelta(t, 20.0, totals["gain_percent"], 1e-9)

	w, resp = do(t, router, http.MethodPost, "/positions/"+positionID+"/events", `{"kind":"split","factor":2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	pos := resp["data"].(map[string]interface{})["position"].(map[string]interface{})
	assert.Equal(t, 200.0, pos["quantity"])

	w, resp = do(t, router, http.MethodGet, "/portfolios/"+id+"/wealth?view=total", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "total_wealth", resp["data"].(map[string]interface{})["view"])

	w, _ = do(t, router, http.MethodDelete, "/positions/"+positionID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAssetRoutes(t *testing.T) {
	router := newTestRouter(t)

	w, resp := do(t, router, http.MethodPost, "/assets", `{"name":"House","category":"real estate","currency":"BRL","original_value":500000}`)
	require.Equal(t, http.StatusCreated, w.Code)
	asset := resp["data"].(map[string]interface{})
	assert.Equal(t, 500000.0, asset["value_reporting"])
	id := asset["id"].(string)

	w, resp = do(t, router, http.MethodGet, "/assets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp["data"], 1)

	w, _ = do(t, router, http.MethodPut, "/assets/"+id, `{"name":"House","currency":"BR","original_value":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodDelete, "/assets/"+id, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	w, _ := do(t, router, http.MethodGet, "/portfolios/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = do(t, router, http.MethodPost, "/portfolios", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPost, "/portfolios", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPost, "/positions/x/events", `{"kind":"split","factor":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPut, "/positions/missing/price", `{"price":10}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
