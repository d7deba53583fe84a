package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// TradeRepository handles read/write operations for trade audit rows.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new repository instance using the main read/write database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *TradeRepository) WithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create inserts a new trade row. The given record is updated with the
// generated ID and timestamps.
func (r *TradeRepository) Create(ctx context.Context, trade *model.TradeRecord) error {
	logger.WithFields(map[string]interface{}{
		"repo": "TradeRepository",
		"op":   "Create",
		"coin": trade.Coin,
		"side": trade.Side,
	}).Debug("Creating trade record")

	err := r.db.WithContext(ctx).Create(trade).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "TradeRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create trade record")
		return err
	}
	return nil
}

// FindOpenByCoin returns the open trade for a coin, or (nil, nil) when none
// exists.
func (r *TradeRepository) FindOpenByCoin(ctx context.Context, coin string) (*model.TradeRecord, error) {
	var trade model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("coin = ? AND status = ?", coin, model.TradeStatusOpen).
		Order("id DESC").
		First(&trade).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &trade, nil
}

// ListOpen returns all open trades.
func (r *TradeRepository) ListOpen(ctx context.Context) ([]model.TradeRecord, error) {
	var trades []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("status = ?", model.TradeStatusOpen).
		Order("id ASC").
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// TradeClose carries the outcome written to a trade when its position
// disappears from the snapshot.
type TradeClose struct {
	ExitPrice  decimal.Decimal
	PnL        decimal.Decimal
	PnLPercent decimal.Decimal
	Status     string
	Reason     string
	At         time.Time
}

// Close marks an open trade closed with its realized outcome.
func (r *TradeRepository) Close(ctx context.Context, tradeID uint, c TradeClose) error {
	res := r.db.WithContext(ctx).
		Model(&model.TradeRecord{}).
		Where("id = ? AND status = ?", tradeID, model.TradeStatusOpen).
		Updates(map[string]interface{}{
			"exit_price":   c.ExitPrice,
			"pnl":          c.PnL,
			"pnl_percent":  c.PnLPercent,
			"status":       c.Status,
			"close_reason": c.Reason,
			"updated_at":   c.At,
		})
	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "TradeRepository",
			"op":       "Close",
			"trade_id": tradeID,
		}).WithError(res.Error).Error("Failed to close trade")
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Search returns recent trades, newest first, with optional filters.
type TradeSearchOptions struct {
	Coin   string
	Status string
	Limit  int
}

func (r *TradeRepository) Search(ctx context.Context, opts TradeSearchOptions) ([]model.TradeRecord, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.TradeRecord{})
	if opts.Coin != "" {
		q = q.Where("coin = ?", opts.Coin)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}

	var trades []model.TradeRecord
	err := q.Order("id DESC").Limit(opts.Limit).Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}

// DailyStats aggregates the trades of one UTC day.
func (r *TradeRepository) DailyStats(ctx context.Context, dayStart time.Time) (*model.DailyStats, error) {
	var trades []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", dayStart, dayStart.Add(24*time.Hour)).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}

	stats := &model.DailyStats{TotalTrades: len(trades)}
	for _, trade := range trades {
		if trade.Status == model.TradeStatusOpen {
			stats.OpenTrades++
			continue
		}
		stats.ClosedTrades++
		if trade.PnL == nil {
			continue
		}
		stats.TotalPnL = stats.TotalPnL.Add(*trade.PnL)
		if trade.PnL.IsPositive() {
			stats.WinningTrades++
		} else {
			stats.LosingTrades++
		}
	}
	if stats.ClosedTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(stats.ClosedTrades))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return stats, nil
}
