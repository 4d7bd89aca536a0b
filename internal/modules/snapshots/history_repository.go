package snapshots

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/rs/zerolog"
)

const snapshotColumns = `portfolio_id, snapshot_date, total_value, total_invested, total_gain,
	gain_percent, accumulated_rate_a, accumulated_rate_b, created_at`

// HistoryRepository persists history snapshots in history.db.
type HistoryRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db database.Querier, log zerolog.Logger) *HistoryRepository {
	return &HistoryRepository{
		db:  db,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *HistoryRepository) WithTx(tx *sql.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx, log: r.log}
}

// Upsert writes the snapshot for (portfolio_id, date). Re-running a date
// replaces its values and keeps the original created_at.
func (r *HistoryRepository) Upsert(s domain.HistorySnapshot) error {
	createdAt := s.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT INTO history_snapshots (`+snapshotColumns+`, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, snapshot_date) DO UPDATE SET
			total_value = excluded.total_value,
			total_invested = excluded.total_invested,
			total_gain = excluded.total_gain,
			gain_percent = excluded.gain_percent,
			accumulated_rate_a = excluded.accumulated_rate_a,
			accumulated_rate_b = excluded.accumulated_rate_b,
			updated_at = excluded.updated_at`,
		s.PortfolioID,
		s.Date,
		s.TotalValue,
		s.TotalInvested,
		s.TotalGain,
		s.GainPercent,
		s.AccumulatedRateA,
		s.AccumulatedRateB,
		createdAt.Unix(),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// LatestDate returns the most recent snapshot date of a portfolio, or "" when
// it has none.
func (r *HistoryRepository) LatestDate(portfolioID string) (string, error) {
	var date sql.NullString
	err := r.db.QueryRow(
		"SELECT MAX(snapshot_date) FROM history_snapshots WHERE portfolio_id = ?", portfolioID,
	).Scan(&date)
	if err != nil {
		return "", fmt.Errorf("failed to query latest snapshot date: %w", err)
	}
	return date.String, nil
}

// Get returns one snapshot.
func (r *HistoryRepository) Get(portfolioID, date string) (*domain.HistorySnapshot, error) {
	row := r.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM history_snapshots WHERE portfolio_id = ? AND snapshot_date = ?",
		portfolioID, date,
	)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot %s/%s: %w", portfolioID, date, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

// List returns the snapshots of a portfolio between from and to inclusive,
// oldest first. Empty bounds are open.
func (r *HistoryRepository) List(portfolioID, from, to string) ([]domain.HistorySnapshot, error) {
	query := "SELECT " + snapshotColumns + " FROM history_snapshots WHERE portfolio_id = ?"
	args := []interface{}{portfolioID}
	if from != "" {
		query += " AND snapshot_date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND snapshot_date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY snapshot_date ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []domain.HistorySnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Count returns the number of snapshots stored for a portfolio.
func (r *HistoryRepository) Count(portfolioID string) (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM history_snapshots WHERE portfolio_id = ?", portfolioID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (domain.HistorySnapshot, error) {
	var s domain.HistorySnapshot
	var createdAt int64
	err := row.Scan(
		&s.PortfolioID,
		&s.Date,
		&s.TotalValue,
		&s.TotalInvested,
		&s.TotalGain,
		&s.GainPercent,
		&s.AccumulatedRateA,
		&s.AccumulatedRateB,
		&createdAt,
	)
	if err != nil {
		return s, err
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, nil
}
