package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coinlens/coinlens-go/internal/models"
)

// ErrAssetNotFound is returned when a lookup matches no asset.
var ErrAssetNotFound = errors.New("asset not found")

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	// SendBatch sends a batch of queries in a single round trip.
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// AssetRepository handles database operations for source assets.
type AssetRepository struct {
	pool DatabasePool
}

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(pool DatabasePool) *AssetRepository {
	return &AssetRepository{pool: pool}
}

// FindBySymbol resolves a (symbol, source) pair to an asset id.
func (r *AssetRepository) FindBySymbol(ctx context.Context, symbol, source string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		"SELECT id FROM assets WHERE symbol = $1 AND source = $2", symbol, source).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAssetNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find asset %s:%s: %w", source, symbol, err)
	}
	return id, nil
}

// FindByID loads a single asset by its id.
func (r *AssetRepository) FindByID(ctx context.Context, id int64) (*models.Asset, error) {
	var asset models.Asset
	err := r.pool.QueryRow(ctx, `
		SELECT id, source, symbol, base_currency, quote_currency, is_active, created_at, updated_at
		FROM assets WHERE id = $1`, id).Scan(
		&asset.ID, &asset.Source, &asset.Symbol, &asset.BaseCurrency,
		&asset.QuoteCurrency, &asset.IsActive, &asset.CreatedAt, &asset.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find asset %d: %w", id, err)
	}
	return &asset, nil
}

// BulkUpsertAssets upserts discovered assets keyed by (source, symbol) and
// returns the number of affected rows. Re-discovered assets are reactivated.
func (r *AssetRepository) BulkUpsertAssets(ctx context.Context, assets []models.Asset) (int64, error) {
	if len(assets) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, asset := range assets {
		batch.Queue(`
			INSERT INTO assets (source, symbol, base_currency, quote_currency, is_active)
			VALUES ($1, $2, $3, $4, true)
			ON CONFLICT (source, symbol)
			DO UPDATE SET
				base_currency = EXCLUDED.base_currency,
				quote_currency = EXCLUDED.quote_currency,
				is_active = true,
				updated_at = CURRENT_TIMESTAMP`,
			asset.Source, asset.Symbol, asset.BaseCurrency, asset.QuoteCurrency)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	var affected int64
	for range assets {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("failed to upsert assets: %w", err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

// ListActiveBySource returns all active assets for one source.
func (r *AssetRepository) ListActiveBySource(ctx context.Context, source string) ([]models.Asset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, symbol, base_currency, quote_currency, is_active, created_at, updated_at
		FROM assets WHERE source = $1 AND is_active = true
		ORDER BY symbol`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets for %s: %w", source, err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

// ListActive returns all active assets across sources.
func (r *AssetRepository) ListActive(ctx context.Context) ([]models.Asset, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, source, symbol, base_currency, quote_currency, is_active, created_at, updated_at
		FROM assets WHERE is_active = true
		ORDER BY source, symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active assets: %w", err)
	}
	defer rows.Close()

	return scanAssets(rows)
}

func scanAssets(rows pgx.Rows) ([]models.Asset, error) {
	var assets []models.Asset
	for rows.Next() {
		var asset models.Asset
		if err := rows.Scan(
			&asset.ID, &asset.Source, &asset.Symbol, &asset.BaseCurrency,
			&asset.QuoteCurrency, &asset.IsActive, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assets: %w", err)
	}
	return assets, nil
}
