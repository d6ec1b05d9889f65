package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinlens/coinlens-go/internal/models"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestAssetRepository_FindBySymbol(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	mock.ExpectQuery("SELECT id FROM assets").
		WithArgs("BTCUSDT", "binance").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := repo.FindBySymbol(context.Background(), "BTCUSDT", "binance")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_FindBySymbolNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	mock.ExpectQuery("SELECT id FROM assets").
		WithArgs("GHOSTUSDT", "binance").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindBySymbol(context.Background(), "GHOSTUSDT", "binance")
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestAssetRepository_FindByID(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	now := time.Now()
	mock.ExpectQuery("SELECT id, source, symbol").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "source", "symbol", "base_currency", "quote_currency", "is_active", "created_at", "updated_at",
		}).AddRow(int64(3), "binance", "ETHUSDT", "ETH", "USDT", true, now, now))

	asset, err := repo.FindByID(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", asset.Symbol)
	assert.Equal(t, "binance", asset.Source)
	assert.True(t, asset.IsActive)
}

func TestAssetRepository_FindByIDNotFound(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	mock.ExpectQuery("SELECT id, source, symbol").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestAssetRepository_BulkUpsertAssets(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	assets := []models.Asset{
		{Source: "binance", Symbol: "BTCUSDT", BaseCurrency: "BTC", QuoteCurrency: "USDT"},
		{Source: "binance", Symbol: "ETHUSDT", BaseCurrency: "ETH", QuoteCurrency: "USDT"},
	}

	batch := mock.ExpectBatch()
	for _, asset := range assets {
		batch.ExpectExec("INSERT INTO assets").
			WithArgs(asset.Source, asset.Symbol, asset.BaseCurrency, asset.QuoteCurrency).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}

	affected, err := repo.BulkUpsertAssets(context.Background(), assets)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepository_BulkUpsertAssetsEmpty(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	affected, err := repo.BulkUpsertAssets(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestAssetRepository_BulkUpsertAssetsPartialFailure(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	assets := []models.Asset{
		{Source: "binance", Symbol: "BTCUSDT"},
		{Source: "binance", Symbol: "ETHUSDT"},
	}

	batch := mock.ExpectBatch()
	batch.ExpectExec("INSERT INTO assets").
		WithArgs("binance", "BTCUSDT", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	batch.ExpectExec("INSERT INTO assets").
		WithArgs("binance", "ETHUSDT", "", "").
		WillReturnError(errors.New("constraint violation"))

	affected, err := repo.BulkUpsertAssets(context.Background(), assets)
	require.Error(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestAssetRepository_ListActiveBySource(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAssetRepository(mock)

	now := time.Now()
	mock.ExpectQuery("SELECT id, source, symbol").
		WithArgs("binance").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "source", "symbol", "base_currency", "quote_currency", "is_active", "created_at", "updated_at",
		}).
			AddRow(int64(1), "binance", "BTCUSDT", "BTC", "USDT", true, now, now).
			AddRow(int64(2), "binance", "ETHUSDT", "ETH", "USDT", true, now, now))

	assets, err := repo.ListActiveBySource(context.Background(), "binance")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "BTCUSDT", assets[0].Symbol)
	assert.Equal(t, "ETHUSDT", assets[1].Symbol)
}
