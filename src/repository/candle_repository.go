package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// CandleRepository stores reference OHLCV rows captured from Binance.
type CandleRepository struct {
	db *gorm.DB
}

func NewCandleRepository() *CandleRepository {
	return &CandleRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *CandleRepository) WithDB(db *gorm.DB) *CandleRepository {
	return &CandleRepository{db: db}
}

// UpsertBatch writes candles keyed by (symbol, interval, datetime) so re-runs
// over the same window are idempotent.
func (r *CandleRepository) UpsertBatch(ctx context.Context, candles []model.ReferenceCandle) error {
	if len(candles) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "symbol"}, {Name: "interval"}, {Name: "datetime"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"open", "high", "low", "close", "volume",
			}),
		}).
		Create(&candles).Error
}

// LatestDatetime returns the newest stored candle time for a series, or nil
// when the series is empty.
func (r *CandleRepository) LatestDatetime(ctx context.Context, symbol, interval string) (*time.Time, error) {
	var latest sql.NullTime
	err := r.db.WithContext(ctx).
		Model(&model.ReferenceCandle{}).
		Select("MAX(datetime)").
		Where("symbol = ? AND interval = ?", symbol, interval).
		Take(&latest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !latest.Valid {
		return nil, nil
	}
	return &latest.Time, nil
}

// FetchRecent returns the most recent candles in ascending chronological
// order.
func (r *CandleRepository) FetchRecent(ctx context.Context, symbol, interval string, to time.Time, limit int) ([]model.ReferenceCandle, error) {
	if limit <= 0 {
		limit = 200
	}

	var rows []model.ReferenceCandle
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND datetime <= ?", symbol, interval, to).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
