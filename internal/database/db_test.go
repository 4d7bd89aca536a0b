package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, name string, profile DatabaseProfile) *DB {
	t.Helper()
	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), name+".db"),
		Profile: profile,
		Name:    name,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBuildConnectionString(t *testing.T) {
	ledger := buildConnectionString("/tmp/p.db", ProfileLedger)
	assert.Contains(t, ledger, "/tmp/p.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, ledger, "synchronous(FULL)")
	assert.Contains(t, ledger, "busy_timeout(5000)")

	cache := buildConnectionString("/tmp/c.db", ProfileCache)
	assert.Contains(t, cache, "synchronous(OFF)")

	std := buildConnectionString("/tmp/h.db", ProfileStandard)
	assert.Contains(t, std, "synchronous(NORMAL)")
}

func TestMigrate_AllSchemas(t *testing.T) {
	tables := map[string][]string{
		NamePortfolio:  {"portfolios", "positions", "global_assets", "movements"},
		NameHistory:    {"history_snapshots"},
		NameClientData: {"exchangerate", "benchmark_series", "analysis"},
	}

	for name, expected := range tables {
		t.Run(name, func(t *testing.T) {
			db := openTestDB(t, name, ProfileStandard)
			require.NoError(t, db.Migrate())
			require.NoError(t, db.Migrate(), "migrate must be repeatable")

			for _, table := range expected {
				var count int
				err := db.Conn().QueryRow(
					"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table,
				).Scan(&count)
				require.NoError(t, err)
				assert.Equal(t, 1, count, "table %s", table)
			}
		})
	}
}

func TestMigrate_UnknownNameIsNoop(t *testing.T) {
	db := openTestDB(t, "scratch", ProfileStandard)
	assert.NoError(t, db.Migrate())
}

func TestSchema_Unknown(t *testing.T) {
	_, err := Schema("nope")
	assert.Error(t, err)
}

func TestMovementsAreImmutable(t *testing.T) {
	db := openTestDB(t, NamePortfolio, ProfileLedger)
	require.NoError(t, db.Migrate())

	_, err := db.Conn().Exec(`INSERT INTO movements
		(id, portfolio_id, position_id, kind, quantity_before, quantity_after, price_before, price_after, created_at)
		VALUES ('m1', 'p1', 'pos1', 'split', 10, 20, 2, 1, 0)`)
	require.NoError(t, err)

	_, err = db.Conn().Exec(`UPDATE movements SET note = 'x' WHERE id = 'm1'`)
	assert.Error(t, err)

	_, err = db.Conn().Exec(`DELETE FROM movements WHERE id = 'm1'`)
	assert.Error(t, err)
}

func TestWithTransaction(t *testing.T) {
	db := openTestDB(t, "tx", ProfileStandard)
	_, err := db.Conn().Exec("CREATE TABLE items (id INTEGER PRIMARY KEY)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
		return n
	}

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items (id) VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	sentinel := errors.New("boom")
	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items (id) VALUES (2)")
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, count(), "failed transaction must roll back")

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items (id) VALUES (3)")
		panic("unexpected")
	})
	assert.ErrorContains(t, err, "panic in transaction")
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(nil, func(tx *sql.Tx) error { return nil }))
}

func TestBackupTo(t *testing.T) {
	db := openTestDB(t, NameHistory, ProfileStandard)
	require.NoError(t, db.Migrate())

	dest := filepath.Join(t.TempDir(), "copy.db")
	require.NoError(t, db.BackupTo(context.Background(), dest))

	copyDB, err := New(Config{Path: dest, Name: "copy"})
	require.NoError(t, err)
	defer copyDB.Close()

	var count int
	require.NoError(t, copyDB.Conn().QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE name='history_snapshots'").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestHealthCheckAndStats(t *testing.T) {
	db := openTestDB(t, NameHistory, ProfileStandard)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Greater(t, stats.PageCount, int64(0))
	assert.Greater(t, stats.PageSize, int64(0))
}
