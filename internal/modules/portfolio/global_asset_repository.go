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

const globalAssetColumns = `id, name, category, currency, original_value, value_reporting, exchange_rate, updated_at`

// GlobalAssetRepository handles manually declared assets.
type GlobalAssetRepository struct {
	db  database.Querier
	log zerolog.Logger
}

// NewGlobalAssetRepository creates a new global asset repository
func NewGlobalAssetRepository(db database.Querier, log zerolog.Logger) *GlobalAssetRepository {
	return &GlobalAssetRepository{
		db:  db,
		log: log.With().Str("repo", "global_asset").Logger(),
	}
}

// GetByID returns an asset or domain.ErrNotFound.
func (r *GlobalAssetRepository) GetByID(id string) (*domain.GlobalAsset, error) {
	row := r.db.QueryRow("SELECT "+globalAssetColumns+" FROM global_assets WHERE id = ?", id)
	a, err := scanGlobalAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("global asset %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get global asset: %w", err)
	}
	return &a, nil
}

// ListGlobalAssets returns every global asset ordered by name.
func (r *GlobalAssetRepository) ListGlobalAssets() ([]domain.GlobalAsset, error) {
	rows, err := r.db.Query("SELECT " + globalAssetColumns + " FROM global_assets ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query global assets: %w", err)
	}
	defer rows.Close()

	assets := []domain.GlobalAsset{}
	for rows.Next() {
		a, err := scanGlobalAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan global asset: %w", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating global assets: %w", err)
	}
	return assets, nil
}

// Upsert inserts or replaces an asset row.
func (r *GlobalAssetRepository) Upsert(a domain.GlobalAsset) error {
	_, err := r.db.Exec(`INSERT OR REPLACE INTO global_assets (`+globalAssetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Category, strings.ToUpper(a.Currency), a.OriginalValue, a.ValueReporting, a.ExchangeRate, a.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert global asset: %w", err)
	}
	return nil
}

// UpdateValuation writes the reporting value and the rate it was computed
// with in one statement, so value_reporting == original_value * exchange_rate
// holds for every committed row.
func (r *GlobalAssetRepository) UpdateValuation(id string, valueReporting, exchangeRate float64, updatedAt time.Time) error {
	result, err := r.db.Exec(
		"UPDATE global_assets SET value_reporting = ?, exchange_rate = ?, updated_at = ? WHERE id = ?",
		valueReporting, exchangeRate, updatedAt.Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update asset valuation: %w", err)
	}
	return requireRow(result, "global asset", id)
}

// Delete removes an asset.
func (r *GlobalAssetRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM global_assets WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete global asset: %w", err)
	}
	return requireRow(result, "global asset", id)
}

func scanGlobalAsset(row rowScanner) (domain.GlobalAsset, error) {
	var a domain.GlobalAsset
	var updatedAt int64
	err := row.Scan(&a.ID, &a.Name, &a.Category, &a.Currency, &a.OriginalValue, &a.ValueReporting, &a.ExchangeRate, &updatedAt)
	if err != nil {
		return a, err
	}
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return a, nil
}
