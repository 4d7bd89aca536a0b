package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/rs/zerolog"
)

const portfolioColumns = `id, name, total_value, total_invested, total_gain, gain_percent,
	benchmark_ratio, created_at, updated_at`

// PortfolioRepository handles portfolio rows and their cached totals.
type PortfolioRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db database.Querier, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{db: tx, log: r.log}
}

// Create inserts a new portfolio.
func (r *PortfolioRepository) Create(p domain.Portfolio) error {
	_, err := r.db.Exec(`INSERT INTO portfolios (`+portfolioColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.TotalValue, p.TotalInvested, p.TotalGain, p.GainPercent,
		p.BenchmarkRatio, p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	return nil
}

// GetByID returns a portfolio or domain.ErrNotFound.
func (r *PortfolioRepository) GetByID(id string) (*domain.Portfolio, error) {
	row := r.db.QueryRow("SELECT "+portfolioColumns+" FROM portfolios WHERE id = ?", id)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("portfolio %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return &p, nil
}

// List returns every portfolio ordered by creation.
func (r *PortfolioRepository) List() ([]domain.Portfolio, error) {
	rows, err := r.db.Query("SELECT " + portfolioColumns + " FROM portfolios ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := []domain.Portfolio{}
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating portfolios: %w", err)
	}
	return portfolios, nil
}

// Rename changes a portfolio's name.
func (r *PortfolioRepository) Rename(id, name string, at time.Time) error {
	result, err := r.db.Exec("UPDATE portfolios SET name = ?, updated_at = ? WHERE id = ?", name, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to rename portfolio: %w", err)
	}
	return requireRow(result, "portfolio", id)
}

// UpdateTotals writes the cached totals of a portfolio.
func (r *PortfolioRepository) UpdateTotals(id string, totals domain.Totals, at time.Time) error {
	result, err := r.db.Exec(`
		UPDATE portfolios SET
			total_value = ?,
			total_invested = ?,
			total_gain = ?,
			gain_percent = ?,
			updated_at = ?
		WHERE id = ?`,
		totals.TotalValue, totals.TotalInvested, totals.TotalGain, totals.GainPercent, at.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio totals: %w", err)
	}
	return requireRow(result, "portfolio", id)
}

// SetBenchmarkRatio writes the percentage of the risk-free benchmark achieved.
func (r *PortfolioRepository) SetBenchmarkRatio(id string, ratio float64) error {
	result, err := r.db.Exec("UPDATE portfolios SET benchmark_ratio = ? WHERE id = ?", ratio, id)
	if err != nil {
		return fmt.Errorf("failed to update benchmark ratio: %w", err)
	}
	return requireRow(result, "portfolio", id)
}

// Delete removes a portfolio row.
func (r *PortfolioRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM portfolios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return requireRow(result, "portfolio", id)
}

func scanPortfolio(row rowScanner) (domain.Portfolio, error) {
	var p domain.Portfolio
	var createdAt, updatedAt int64
	err := row.Scan(&p.ID, &p.Name, &p.TotalValue, &p.TotalInvested, &p.TotalGain, &p.GainPercent,
		&p.BenchmarkRatio, &createdAt, &updatedAt)
	if err != nil {
		return p, err
	}
	p.CreatedAt = time.Unix(createdAt, 0).UTC()
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return p, nil
}

func requireRow(result sql.Result, kind, id string) error {
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}
