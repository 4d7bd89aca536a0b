package exchangerate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/wealth/internal/clientdata"
	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quietLog = zerolog.New(nil).Level(zerolog.Disabled)

func TestFetchTable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/BRL", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"BRL","rates":{"BRL":1,"USD":0.2,"EUR":0.1818}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, quietLog)
	table, err := client.FetchTable(context.Background(), "brl")
	require.NoError(t, err)

	assert.Equal(t, "BRL", table.Base)
	assert.Equal(t, 0.2, table.Rates["USD"])
	assert.WithinDuration(t, time.Now(), table.FetchedAt, time.Minute)
}

func TestFetchTable_ServesFreshCache(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"rates":{"USD":0.2}}`))
	}))
	defer server.Close()

	cache := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))
	client := NewClient(server.URL, cache, quietLog)

	_, err := client.FetchTable(context.Background(), "BRL")
	require.NoError(t, err)
	_, err = client.FetchTable(context.Background(), "BRL")
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchTable_StaleCacheOnFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cache := clientdata.NewRepository(testingpkg.NewMemoryDB(t, database.NameClientData))
	fetchedAt := time.Now().Add(-3 * time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, cache.Store(clientdata.TableExchangeRate, "BRL", domain.RateTable{
		Base:      "BRL",
		Rates:     map[string]float64{"USD": 0.19},
		FetchedAt: fetchedAt,
	}, -time.Hour))

	client := NewClient(server.URL, cache, quietLog)
	table, err := client.FetchTable(context.Background(), "BRL")
	require.NoError(t, err)

	assert.Equal(t, 0.19, table.Rates["USD"])
	assert.True(t, table.FetchedAt.Equal(fetchedAt))
}

func TestFetchTable_ErrorWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, quietLog)
	_, err := client.FetchTable(context.Background(), "BRL")
	assert.ErrorContains(t, err, "failed to parse response")
}

func TestFetchTable_EmptyRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rates":{}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, quietLog)
	_, err := client.FetchTable(context.Background(), "BRL")
	assert.Error(t, err)
}
