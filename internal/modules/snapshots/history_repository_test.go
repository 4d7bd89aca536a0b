package snapshots

import (
	"testing"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	testingpkg "github.com/aristath/wealth/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRepository_UpsertKeepsCreatedAt(t *testing.T) {
	repo := NewHistoryRepository(testingpkg.NewMemoryDB(t, database.NameHistory), quietLog)
	created := time.Date(2026, 1, 2, 21, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(domain.HistorySnapshot{
		PortfolioID: "p1", Date: "2026-01-02", TotalValue: 100, TotalInvested: 90, CreatedAt: created,
	}))
	require.NoError(t, repo.Upsert(domain.HistorySnapshot{
		PortfolioID: "p1", Date: "2026-01-02", TotalValue: 110, TotalInvested: 90, CreatedAt: created.Add(time.Hour),
	}))

	got, err := repo.Get("p1", "2026-01-02")
	require.NoError(t, err)
	assert.Equal(t, 110.0, got.TotalValue)
	assert.True(t, got.CreatedAt.Equal(created))

	n, err := repo.Count("p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistoryRepository_LatestDate(t *testing.T) {
	repo := NewHistoryRepository(testingpkg.NewMemoryDB(t, database.NameHistory), quietLog)

	latest, err := repo.LatestDate("p1")
	require.NoError(t, err)
	assert.Empty(t, latest)

	for _, d := range []string{"2026-01-05", "2026-01-03", "2026-01-04"} {
		require.NoError(t, repo.Upsert(domain.HistorySnapshot{PortfolioID: "p1", Date: d}))
	}
	require.NoError(t, repo.Upsert(domain.HistorySnapshot{PortfolioID: "p2", Date: "2026-02-01"}))

	latest, err = repo.LatestDate("p1")
	require.NoError(t, err)
	assert.Equal(t, "2026-01-05", latest)
}

func TestHistoryRepository_ListOrdersAscending(t *testing.T) {
	repo := NewHistoryRepository(testingpkg.NewMemoryDB(t, database.NameHistory), quietLog)
	for _, d := range []string{"2026-01-05", "2026-01-03", "2026-01-04"} {
		require.NoError(t, repo.Upsert(domain.HistorySnapshot{PortfolioID: "p1", Date: d}))
	}

	list, err := repo.List("p1", "2026-01-04", "")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "2026-01-04", list[0].Date)
	assert.Equal(t, "2026-01-05", list[1].Date)

	none, err := repo.List("missing", "", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestHistoryRepository_GetMissing(t *testing.T) {
	repo := NewHistoryRepository(testingpkg.NewMemoryDB(t, database.NameHistory), quietLog)
	_, err := repo.Get("p1", "2026-01-01")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
