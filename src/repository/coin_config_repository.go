package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// CoinConfigRepository handles per-coin trading configuration.
type CoinConfigRepository struct {
	db *gorm.DB
}

func NewCoinConfigRepository() *CoinConfigRepository {
	return &CoinConfigRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *CoinConfigRepository) WithDB(db *gorm.DB) *CoinConfigRepository {
	return &CoinConfigRepository{db: db}
}

// FindByCoin returns the config for a coin, or (nil, nil) when none exists.
func (r *CoinConfigRepository) FindByCoin(ctx context.Context, coin string) (*model.CoinConfig, error) {
	var cfg model.CoinConfig
	err := r.db.WithContext(ctx).Where("coin = ?", coin).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// FindOrDefault returns the stored config or the fresh-row defaults when the
// coin has never been configured.
func (r *CoinConfigRepository) FindOrDefault(ctx context.Context, coin string) (*model.CoinConfig, error) {
	cfg, err := r.FindByCoin(ctx, coin)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return model.DefaultCoinConfig(coin), nil
	}
	return cfg, nil
}

// ListEnabledByCategory returns the enabled coins of one category, in
// insertion order.
func (r *CoinConfigRepository) ListEnabledByCategory(ctx context.Context, category string) ([]model.CoinConfig, error) {
	var configs []model.CoinConfig
	err := r.db.WithContext(ctx).
		Where("category = ? AND enabled = ?", category, true).
		Order("id ASC").
		Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// List returns every configured coin.
func (r *CoinConfigRepository) List(ctx context.Context) ([]model.CoinConfig, error) {
	var configs []model.CoinConfig
	err := r.db.WithContext(ctx).Order("coin ASC").Find(&configs).Error
	if err != nil {
		return nil, err
	}
	return configs, nil
}

// Upsert writes a config keyed by coin.
func (r *CoinConfigRepository) Upsert(ctx context.Context, cfg *model.CoinConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "coin"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"enabled",
				"category",
				"default_leverage",
				"default_collateral",
				"max_position_value_usd",
				"max_leverage",
				"default_stop_loss_pct",
				"default_take_profit_pct",
				"tp1_pct",
				"tp1_size_pct",
				"tp2_pct",
				"tp2_size_pct",
				"updated_at",
			}),
		}).
		Create(cfg).Error
}

// UpdateVenueMeta refreshes the exchange-reported asset metadata for a coin.
func (r *CoinConfigRepository) UpdateVenueMeta(ctx context.Context, coin string, maxLeverage int, sizeDecimals int32, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.CoinConfig{}).
		Where("coin = ?", coin).
		Updates(map[string]interface{}{
			"venue_max_leverage": maxLeverage,
			"venue_size_decimals": sizeDecimals,
			"venue_meta_updated":  at,
		}).Error
}
