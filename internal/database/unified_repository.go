package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/coinlens/coinlens-go/internal/models"
)

// ErrMappingNotFound is returned when a lookup matches no mapping.
var ErrMappingNotFound = errors.New("asset mapping not found")

// UnifiedAssetRepository handles database operations for unified assets
// and their per-source mappings.
type UnifiedAssetRepository struct {
	pool DatabasePool
}

// NewUnifiedAssetRepository creates a new unified asset repository.
func NewUnifiedAssetRepository(pool DatabasePool) *UnifiedAssetRepository {
	return &UnifiedAssetRepository{pool: pool}
}

// GetOrCreateUnifiedAsset returns the unified asset with the given
// normalized symbol, creating it when absent.
func (r *UnifiedAssetRepository) GetOrCreateUnifiedAsset(ctx context.Context, symbol, displayName string) (*models.UnifiedAsset, error) {
	var asset models.UnifiedAsset
	err := r.pool.QueryRow(ctx, `
		INSERT INTO unified_assets (symbol, display_name)
		VALUES ($1, $2)
		ON CONFLICT (symbol)
		DO UPDATE SET updated_at = CURRENT_TIMESTAMP
		RETURNING id, symbol, display_name, external_id, created_at, updated_at`,
		symbol, displayName).Scan(
		&asset.ID, &asset.Symbol, &asset.DisplayName, &asset.ExternalID,
		&asset.CreatedAt, &asset.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create unified asset %s: %w", symbol, err)
	}
	return &asset, nil
}

// UpsertMapping creates or refreshes the mapping between a unified asset
// and a source asset. Manual mappings are never overwritten by automatic
// reconciliation runs.
func (r *UnifiedAssetRepository) UpsertMapping(ctx context.Context, unifiedAssetID, assetID int64, confidence int, method string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO asset_mappings (unified_asset_id, asset_id, confidence, method)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (unified_asset_id, asset_id)
		DO UPDATE SET
			confidence = EXCLUDED.confidence,
			method = EXCLUDED.method,
			updated_at = CURRENT_TIMESTAMP
		WHERE asset_mappings.method <> 'manual' OR EXCLUDED.method = 'manual'`,
		unifiedAssetID, assetID, confidence, method)
	if err != nil {
		return fmt.Errorf("failed to upsert mapping %d -> %d: %w", assetID, unifiedAssetID, err)
	}
	return nil
}

// FindMappingByAssetID returns the mapping for one source asset.
func (r *UnifiedAssetRepository) FindMappingByAssetID(ctx context.Context, assetID int64) (*models.AssetMapping, error) {
	var mapping models.AssetMapping
	err := r.pool.QueryRow(ctx, `
		SELECT m.id, m.unified_asset_id, m.asset_id, m.confidence, m.method, m.created_at, m.updated_at
		FROM asset_mappings m
		WHERE m.asset_id = $1`, assetID).Scan(
		&mapping.ID, &mapping.UnifiedAssetID, &mapping.AssetID,
		&mapping.Confidence, &mapping.Method, &mapping.CreatedAt, &mapping.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMappingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mapping for asset %d: %w", assetID, err)
	}
	return &mapping, nil
}

// ListMappings returns all mappings with their source asset details.
func (r *UnifiedAssetRepository) ListMappings(ctx context.Context) ([]models.AssetMapping, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.unified_asset_id, m.asset_id, m.confidence, m.method,
		       m.created_at, m.updated_at, a.source, a.symbol
		FROM asset_mappings m
		JOIN assets a ON a.id = m.asset_id
		ORDER BY m.unified_asset_id, a.source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mappings: %w", err)
	}
	defer rows.Close()

	var mappings []models.AssetMapping
	for rows.Next() {
		var mapping models.AssetMapping
		if err := rows.Scan(
			&mapping.ID, &mapping.UnifiedAssetID, &mapping.AssetID,
			&mapping.Confidence, &mapping.Method, &mapping.CreatedAt,
			&mapping.UpdatedAt, &mapping.Source, &mapping.Symbol); err != nil {
			return nil, fmt.Errorf("failed to scan mapping: %w", err)
		}
		mappings = append(mappings, mapping)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mappings: %w", err)
	}
	return mappings, nil
}
