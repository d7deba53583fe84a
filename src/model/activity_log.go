package model

import "time"

// ActivityLog is the dashboard's rolling event feed (risk rejections, trade
// executions, webhook failures).
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	Level    string `gorm:"size:10;not null" json:"level"` // info, warning, error
	Category string `gorm:"size:20;not null" json:"category"`
	Message  string `gorm:"size:500;not null" json:"message"`
	Details  string `gorm:"type:text" json:"details,omitempty"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
