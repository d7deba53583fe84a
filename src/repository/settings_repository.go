package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// SettingsRepository owns the singleton risk-settings row.
type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository() *SettingsRepository {
	return &SettingsRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SettingsRepository) WithDB(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get loads the settings row, seeding defaults when the table is empty.
func (r *SettingsRepository) Get(ctx context.Context) (*model.RiskSettings, error) {
	var settings model.RiskSettings
	err := r.db.WithContext(ctx).First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	defaults := model.DefaultRiskSettings()
	if err := r.db.WithContext(ctx).Create(defaults).Error; err != nil {
		return nil, err
	}
	logger.Info("Risk settings seeded with defaults")
	return defaults, nil
}

// Update persists modified settings.
func (r *SettingsRepository) Update(ctx context.Context, settings *model.RiskSettings) error {
	return r.db.WithContext(ctx).Save(settings).Error
}

// SetBotEnabled flips the master switch.
func (r *SettingsRepository) SetBotEnabled(ctx context.Context, settingsID uint, enabled bool) error {
	logger.WithField("enabled", enabled).Info("Bot toggle changed")
	return r.db.WithContext(ctx).
		Model(&model.RiskSettings{}).
		Where("id = ?", settingsID).
		Update("bot_enabled", enabled).Error
}
