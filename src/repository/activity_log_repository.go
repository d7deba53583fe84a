package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"signalbridge/src/database"
	"signalbridge/src/model"
)

// ActivityLogRepository writes the dashboard's rolling event feed. Failures
// here are logged and swallowed so audit plumbing never blocks execution.
type ActivityLogRepository struct {
	db *gorm.DB
}

func NewActivityLogRepository() *ActivityLogRepository {
	return &ActivityLogRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ActivityLogRepository) WithDB(db *gorm.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Record appends one event. Best effort.
func (r *ActivityLogRepository) Record(ctx context.Context, level, category, message, details string) {
	entry := &model.ActivityLog{
		Level:    level,
		Category: category,
		Message:  message,
		Details:  details,
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithError(err).WithField("category", category).Warn("Failed to persist activity log entry")
	}
}

// ListRecent returns the newest entries, optionally filtered by category.
func (r *ActivityLogRepository) ListRecent(ctx context.Context, category string, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Model(&model.ActivityLog{})
	if category != "" {
		q = q.Where("category = ?", category)
	}

	var entries []model.ActivityLog
	err := q.Order("id DESC").Limit(limit).Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
