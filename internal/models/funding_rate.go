package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FundingRate represents a funding rate sample for a perpetual contract.
type FundingRate struct {
	ID              int64            `json:"id" db:"id"`
	AssetID         int64            `json:"asset_id" db:"asset_id"`
	Source          string           `json:"source" db:"source"`
	Rate            decimal.Decimal  `json:"rate" db:"rate"`
	FundingTime     time.Time        `json:"funding_time" db:"funding_time"`
	NextFundingTime *time.Time       `json:"next_funding_time" db:"next_funding_time"`
	MarkPrice       *decimal.Decimal `json:"mark_price" db:"mark_price"`
	Timestamp       time.Time        `json:"timestamp" db:"timestamp"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`

	// Joined fields
	Symbol string `json:"symbol,omitempty" db:"symbol"`
}
