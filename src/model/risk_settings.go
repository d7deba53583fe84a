package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RiskSettings is the process-wide limit configuration. It is mutated only
// through the settings-update endpoint and read by every risk evaluation.
type RiskSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	BotEnabled bool `gorm:"default:true" json:"bot_enabled"`

	MaxPositionValueUSD decimal.Decimal `gorm:"type:numeric;default:1000" json:"max_position_value_usd"`
	// MaxTotalExposurePct caps total notional as a percentage of account
	// equity (75 means 75%).
	MaxTotalExposurePct decimal.Decimal `gorm:"type:numeric;default:75" json:"max_total_exposure_pct"`
	MaxLeverage         int             `gorm:"default:10" json:"max_leverage"`
	MaxDailyLossUSD     decimal.Decimal `gorm:"type:numeric;default:500" json:"max_daily_loss_usd"`
	MaxDailyTrades      int             `gorm:"default:20" json:"max_daily_trades"`
	MaxOpenPositions    int             `gorm:"default:5" json:"max_open_positions"`

	ConsecutiveLossThreshold int `gorm:"default:3" json:"consecutive_loss_threshold"`
	PauseCooldownMinutes     int `gorm:"default:60" json:"pause_cooldown_minutes"`

	UpdatedAt time.Time `json:"updated_at"`
}

func (RiskSettings) TableName() string {
	return "risk_settings"
}

// DefaultRiskSettings mirrors the column defaults for fresh installs.
func DefaultRiskSettings() *RiskSettings {
	return &RiskSettings{
		BotEnabled:               true,
		MaxPositionValueUSD:      decimal.NewFromInt(1000),
		MaxTotalExposurePct:      decimal.NewFromInt(75),
		MaxLeverage:              10,
		MaxDailyLossUSD:          decimal.NewFromInt(500),
		MaxDailyTrades:           20,
		MaxOpenPositions:         5,
		ConsecutiveLossThreshold: 3,
		PauseCooldownMinutes:     60,
	}
}

// PauseCooldown is the circuit-breaker window as a duration.
func (s *RiskSettings) PauseCooldown() time.Duration {
	return time.Duration(s.PauseCooldownMinutes) * time.Minute
}
