// Package ledger stores the append-only record of corporate events applied to positions.
package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/wealth/internal/database"
	"github.com/aristath/wealth/internal/domain"
	"github.com/rs/zerolog"
)

// DefaultLimit caps list queries without an explicit limit.
const DefaultLimit = 100

const movementColumns = `id, portfolio_id, position_id, kind, factor, amount,
	quantity_before, quantity_after, price_before, price_after, note, created_at`

// Repository reads and appends movements. There is no update or delete; the
// schema rejects both with triggers.
type Repository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewRepository creates a new ledger repository
func NewRepository(db database.Querier, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "ledger").Logger(),
	}
}

// Insert appends a movement inside tx, so it commits or rolls back together
// with the position change it records.
func (r *Repository) Insert(tx *sql.Tx, m domain.Movement) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := tx.Exec(`INSERT INTO movements (`+movementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.PortfolioID,
		m.PositionID,
		string(m.Kind),
		m.Factor,
		m.Amount,
		m.QuantityBefore,
		m.QuantityAfter,
		m.PriceBefore,
		m.PriceAfter,
		m.Note,
		createdAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert movement: %w", err)
	}

	r.log.Info().
		Str("id", m.ID).
		Str("position_id", m.PositionID).
		Str("kind", string(m.Kind)).
		Msg("Movement recorded")
	return nil
}

// ListByPortfolio returns the newest movements of a portfolio first.
func (r *Repository) ListByPortfolio(portfolioID string, limit int) ([]domain.Movement, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return r.query("SELECT "+movementColumns+" FROM movements WHERE portfolio_id = ? ORDER BY created_at DESC, id DESC LIMIT ?",
		portfolioID, limit)
}

// ListByPosition returns every movement of a position, oldest first.
func (r *Repository) ListByPosition(positionID string) ([]domain.Movement, error) {
	return r.query("SELECT "+movementColumns+" FROM movements WHERE position_id = ? ORDER BY created_at, id", positionID)
}

func (r *Repository) query(query string, args ...interface{}) ([]domain.Movement, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	movements := []domain.Movement{}
	for rows.Next() {
		var m domain.Movement
		var kind string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.PortfolioID, &m.PositionID, &kind, &m.Factor, &m.Amount,
			&m.QuantityBefore, &m.QuantityAfter, &m.PriceBefore, &m.PriceAfter, &m.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Kind = domain.MovementKind(kind)
		m.CreatedAt = time.Unix(0, createdAt).UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movements: %w", err)
	}
	return movements, nil
}
