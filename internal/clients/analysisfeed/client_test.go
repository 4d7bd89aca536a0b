package analysisfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/database"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = zerolog.New(nil).Level(zerolog.Disabled)

func TestAnalyze_ExtractsConfiguredPaths(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/analysis/PETR4", r.URL.Path)
		_, _ = w.Write([]byte(`{"stats":{"vol_1y":31.5},"quotes":[{"change":"-2,5"}]}`))
	}))
	defer server.Close()

	repo := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))
	client := NewClient(Config{
		URLTemplate:    server.URL + "/analysis/{ticker}",
		VolatilityPath: "$.stats.vol_1y",
		ChangePath:     "$.quotes[*].change",
	}, repo, quietLog)

	analysis, err := client.Analyze(context.Background(), "petr4")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", analysis.Ticker)
	assert.InDelta(t, 31.5, analysis.Volatility, 1e-9)
	require.NotNil(t, analysis.ChangePercent)
	assert.InDelta(t, -2.5, *analysis.ChangePercent, 1e-9)

	_, err = client.Analyze(context.Background(), "PETR4")
	require.NoError(t, err)
	assert.Equal(t, 1, hits, "second call is served from cache")
}

func TestAnalyze_MissingChangeIsOptional(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"volatility":12}`))
	}))
	defer server.Close()

	client := NewClient(Config{URLTemplate: server.URL + "/{ticker}", ChangePath: DefaultChangePath}, nil, quietLog)
	analysis, err := client.Analyze(context.Background(), "VALE3")
	require.NoError(t, err)
	assert.InDelta(t, 12.0, analysis.Volatility, 1e-9)
	assert.Nil(t, analysis.ChangePercent)
}

func TestAnalyze_MissingVolatilityFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price":10}`))
	}))
	defer server.Close()

	client := NewClient(Config{URLTemplate: server.URL + "/{ticker}"}, nil, quietLog)
	_, err := client.Analyze(context.Background(), "VALE3")
	assert.ErrorContains(t, err, "volatility")
}

func TestAnalyze_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{URLTemplate: server.URL + "/{ticker}"}, nil, quietLog)
	_, err := client.Analyze(context.Background(), "VALE3")
	assert.ErrorContains(t, err, "502")
}

func TestAnalyze_NotConfigured(t *testing.T) {
	client := NewClient(Config{}, nil, quietLog)
	_, err := client.Analyze(context.Background(), "VALE3")
	assert.Error(t, err)
}
