package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Liquidation represents an aggregated liquidation event bucket.
type Liquidation struct {
	ID        int64           `json:"id" db:"id"`
	AssetID   int64           `json:"asset_id" db:"asset_id"`
	Source    string          `json:"source" db:"source"`
	Side      string          `json:"side" db:"side"` // long/short
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  decimal.Decimal `json:"quantity" db:"quantity"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
