package platform

import (
	"time"

	"github.com/shopspring/decimal"
)

// Capabilities declares which data series a source exposes. It is resolved
// once at client construction and consumed by the pipelines' skip checks.
type Capabilities struct {
	SupportsFunding        bool `json:"supports_funding"`
	SupportsOHLCV          bool `json:"supports_ohlcv"`
	SupportsOpenInterest   bool `json:"supports_open_interest"`
	SupportsLongShortRatio bool `json:"supports_long_short_ratio"`
	SupportsLiquidations   bool `json:"supports_liquidations"`
}

// AssetDescriptor describes one instrument as reported by the source.
type AssetDescriptor struct {
	Symbol        string `json:"symbol"`
	BaseCurrency  string `json:"base_currency"`
	QuoteCurrency string `json:"quote_currency"`
	Active        bool   `json:"active"`
}

// FundingRateRecord is one provider funding rate sample.
type FundingRateRecord struct {
	Symbol          string           `json:"symbol"`
	Rate            decimal.Decimal  `json:"rate"`
	FundingTime     time.Time        `json:"funding_time"`
	NextFundingTime *time.Time       `json:"next_funding_time"`
	MarkPrice       *decimal.Decimal `json:"mark_price"`
	Timestamp       time.Time        `json:"timestamp"`
}

// CandleRecord is one provider OHLCV candle.
type CandleRecord struct {
	Symbol    string          `json:"symbol"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
	Timestamp time.Time       `json:"timestamp"`
}

// OpenInterestRecord is one provider open interest sample.
type OpenInterestRecord struct {
	Symbol            string           `json:"symbol"`
	OpenInterest      decimal.Decimal  `json:"open_interest"`
	OpenInterestValue *decimal.Decimal `json:"open_interest_value"`
	Timestamp         time.Time        `json:"timestamp"`
}

// LongShortRatioRecord is one provider long/short account ratio sample.
type LongShortRatioRecord struct {
	Symbol       string          `json:"symbol"`
	LongAccount  decimal.Decimal `json:"long_account"`
	ShortAccount decimal.Decimal `json:"short_account"`
	Ratio        decimal.Decimal `json:"ratio"`
	Timestamp    time.Time       `json:"timestamp"`
}

// LiquidationRecord is one provider liquidation event.
type LiquidationRecord struct {
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp time.Time       `json:"timestamp"`
}

// Gateway response envelopes.

type assetsResponse struct {
	Source string            `json:"source"`
	Assets []AssetDescriptor `json:"assets"`
}

type capabilitiesResponse struct {
	Source       string       `json:"source"`
	Capabilities Capabilities `json:"capabilities"`
}

type fundingRatesResponse struct {
	Symbol  string              `json:"symbol"`
	Records []FundingRateRecord `json:"records"`
}

type candlesResponse struct {
	Symbol  string         `json:"symbol"`
	Records []CandleRecord `json:"records"`
}

type openInterestResponse struct {
	Symbol  string               `json:"symbol"`
	Records []OpenInterestRecord `json:"records"`
}

type longShortRatioResponse struct {
	Symbol  string                 `json:"symbol"`
	Records []LongShortRatioRecord `json:"records"`
}

type liquidationsResponse struct {
	Symbol  string              `json:"symbol"`
	Records []LiquidationRecord `json:"records"`
}

// ErrorResponse is the gateway error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
