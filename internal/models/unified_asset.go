package models

import (
	"time"
)

// Mapping methods for asset reconciliation.
const (
	MappingMethodAutoSymbol = "auto_symbol"
	MappingMethodAutoPrice  = "auto_price"
	MappingMethodManual     = "manual"
)

// UnifiedAsset is the cross-source identity grouping source-specific
// symbols believed to represent the same underlying instrument.
type UnifiedAsset struct {
	ID          int64     `json:"id" db:"id"`
	Symbol      string    `json:"symbol" db:"symbol"`
	DisplayName string    `json:"display_name" db:"display_name"`
	ExternalID  *string   `json:"external_id" db:"external_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// AssetMapping links one source asset to a unified asset. At most one
// mapping exists per (unified asset, source asset) pair.
type AssetMapping struct {
	ID             int64     `json:"id" db:"id"`
	UnifiedAssetID int64     `json:"unified_asset_id" db:"unified_asset_id"`
	AssetID        int64     `json:"asset_id" db:"asset_id"`
	Confidence     int       `json:"confidence" db:"confidence"`
	Method         string    `json:"method" db:"method"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

	// Joined fields
	Source string `json:"source,omitempty" db:"source"`
	Symbol string `json:"symbol,omitempty" db:"symbol"`
}
