package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskState is the persisted singleton of running risk counters. Mutated only
// by the state reconciler; daily fields reset lazily at UTC midnight.
type RiskState struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Day is the UTC date the daily counters belong to.
	Day time.Time `gorm:"not null" json:"day"`

	DailyTradeCount   int             `gorm:"default:0" json:"daily_trade_count"`
	DailyRealizedPnL  decimal.Decimal `gorm:"type:numeric;default:0" json:"daily_realized_pnl"`
	ConsecutiveLosses int             `gorm:"default:0" json:"consecutive_losses"`

	TradingPausedUntil *time.Time `json:"trading_paused_until,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (RiskState) TableName() string {
	return "risk_state"
}

// PausedAt reports whether the circuit breaker is active at t.
func (s *RiskState) PausedAt(t time.Time) bool {
	return s.TradingPausedUntil != nil && t.Before(*s.TradingPausedUntil)
}
