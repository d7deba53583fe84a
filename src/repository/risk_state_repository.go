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
	"signalbridge/src/utils"
)

// RiskStateRepository owns the singleton row of running risk counters.
type RiskStateRepository struct {
	db *gorm.DB
}

func NewRiskStateRepository() *RiskStateRepository {
	return &RiskStateRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *RiskStateRepository) WithDB(db *gorm.DB) *RiskStateRepository {
	return &RiskStateRepository{db: db}
}

// GetOrCreate loads the state row, creating it for the given day when the
// table is empty.
func (r *RiskStateRepository) GetOrCreate(ctx context.Context, now time.Time) (*model.RiskState, error) {
	var state model.RiskState
	err := r.db.WithContext(ctx).First(&state).Error
	if err == nil {
		return &state, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	state = model.RiskState{Day: utils.StartOfDayUTC(now)}
	if err := r.db.WithContext(ctx).Create(&state).Error; err != nil {
		return nil, err
	}
	logger.WithField("day", state.Day).Info("Risk state initialized")
	return &state, nil
}

// ResetDaily zeroes the daily counters and moves the state to a new day.
// Consecutive losses and an active pause survive the rollover.
func (r *RiskStateRepository) ResetDaily(ctx context.Context, stateID uint, day time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.RiskState{}).
		Where("id = ?", stateID).
		Updates(map[string]interface{}{
			"day":                day,
			"daily_trade_count":  0,
			"daily_realized_pnl": decimal.Zero,
		}).Error
}

// IncrementTradeCount bumps the daily counter atomically.
func (r *RiskStateRepository) IncrementTradeCount(ctx context.Context, stateID uint) error {
	return r.db.WithContext(ctx).
		Model(&model.RiskState{}).
		Where("id = ?", stateID).
		Update("daily_trade_count", gorm.Expr("daily_trade_count + ?", 1)).Error
}

// RecordRealizedPnL adds a realized outcome and updates the loss streak in a
// single statement batch. A win resets the streak; a loss extends it.
func (r *RiskStateRepository) RecordRealizedPnL(ctx context.Context, stateID uint, pnl decimal.Decimal) error {
	updates := map[string]interface{}{
		"daily_realized_pnl": gorm.Expr("daily_realized_pnl + ?", pnl),
	}
	if pnl.IsNegative() {
		updates["consecutive_losses"] = gorm.Expr("consecutive_losses + ?", 1)
	} else {
		updates["consecutive_losses"] = 0
	}
	return r.db.WithContext(ctx).
		Model(&model.RiskState{}).
		Where("id = ?", stateID).
		Updates(updates).Error
}

// Pause engages the circuit breaker until the given time.
func (r *RiskStateRepository) Pause(ctx context.Context, stateID uint, until time.Time) error {
	logger.WithField("until", until).Warn("Trading paused by circuit breaker")
	return r.db.WithContext(ctx).
		Model(&model.RiskState{}).
		Where("id = ?", stateID).
		Update("trading_paused_until", until).Error
}

// ClearPause lifts an active pause.
func (r *RiskStateRepository) ClearPause(ctx context.Context, stateID uint) error {
	return r.db.WithContext(ctx).
		Model(&model.RiskState{}).
		Where("id = ?", stateID).
		Update("trading_paused_until", nil).Error
}
