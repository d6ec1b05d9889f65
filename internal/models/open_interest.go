package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenInterest represents open interest for an asset at a point in time.
// For snapshot-only platforms only the latest value is ever stored.
type OpenInterest struct {
	ID                int64            `json:"id" db:"id"`
	AssetID           int64            `json:"asset_id" db:"asset_id"`
	Source            string           `json:"source" db:"source"`
	Interval          string           `json:"interval" db:"interval"`
	OpenInterest      decimal.Decimal  `json:"open_interest" db:"open_interest"`
	OpenInterestValue *decimal.Decimal `json:"open_interest_value" db:"open_interest_value"`
	Timestamp         time.Time        `json:"timestamp" db:"timestamp"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}
