package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/rs/zerolog"
)

const positionColumns = `id, portfolio_id, name, instrument_type, ticker, quantity, purchase_price,
	current_price, currency, current_value, total_invested, gain_percent, updated_at`

// PositionRepository handles position database operations
type PositionRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewPositionRepository creates a new position repository
func NewPositionRepository(db database.Querier, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		db:  db,
		log: log.With().Str("repo", "position").Logger(),
	}
}

// WithTx returns a repository bound to tx.
func (r *PositionRepository) WithTx(tx *sql.Tx) *PositionRepository {
	return &PositionRepository{db: tx, log: r.log}
}

// GetByID returns a position or domain.ErrNotFound.
func (r *PositionRepository) GetByID(id string) (*domain.Position, error) {
	row := r.db.QueryRow("SELECT "+positionColumns+" FROM positions WHERE id = ?", id)
	pos, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return &pos, nil
}

// GetByPortfolio returns the positions of one portfolio ordered by name.
func (r *PositionRepository) GetByPortfolio(portfolioID string) ([]domain.Position, error) {
	return r.query("SELECT "+positionColumns+" FROM positions WHERE portfolio_id = ? ORDER BY name, id", portfolioID)
}

// GetAll returns all positions
func (r *PositionRepository) GetAll() ([]domain.Position, error) {
	return r.query("SELECT " + positionColumns + " FROM positions ORDER BY portfolio_id, name, id")
}

func (r *PositionRepository) query(query string, args ...interface{}) ([]domain.Position, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []domain.Position{}
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

// Upsert inserts or replaces a position row.
func (r *PositionRepository) Upsert(p domain.Position) error {
	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO positions
		(`+positionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.PortfolioID,
		p.Name,
		strings.ToUpper(string(p.Type)),
		nullString(p.Ticker),
		p.Quantity,
		p.PurchasePrice,
		p.CurrentPrice,
		p.Currency,
		p.CurrentValue,
		p.TotalInvested,
		p.GainPercent,
		updatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	r.log.Debug().Str("id", p.ID).Str("portfolio_id", p.PortfolioID).Msg("Position upserted")
	return nil
}

// Delete deletes a position by id.
func (r *PositionRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM positions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete position: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("position %s: %w", id, domain.ErrNotFound)
	}
	r.log.Info().Str("id", id).Msg("Position deleted")
	return nil
}

// DeleteByPortfolio deletes every position of a portfolio.
func (r *PositionRepository) DeleteByPortfolio(portfolioID string) (int64, error) {
	result, err := r.db.Exec("DELETE FROM positions WHERE portfolio_id = ?", portfolioID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete positions: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(row rowScanner) (domain.Position, error) {
	var p domain.Position
	var instrument string
	var ticker sql.NullString
	var updatedAt int64

	err := row.Scan(
		&p.ID,
		&p.PortfolioID,
		&p.Name,
		&instrument,
		&ticker,
		&p.Quantity,
		&p.PurchasePrice,
		&p.CurrentPrice,
		&p.Currency,
		&p.CurrentValue,
		&p.TotalInvested,
		&p.GainPercent,
		&updatedAt,
	)
	if err != nil {
		return p, err
	}

	p.Type = domain.InstrumentType(instrument)
	if ticker.Valid {
		p.Ticker = ticker.String
	}
	p.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return p, nil
}

func nullString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}
