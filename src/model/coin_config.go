package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CategoryL1s   = "L1s"
	CategoryApps  = "APPS"
	CategoryMemes = "MEMES"
	CategoryHIP3  = "HIP-3"
)

// CoinConfig holds per-coin trading configuration. Override columns narrow
// the global risk settings and never widen them.
type CoinConfig struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Coin string `gorm:"size:20;not null;uniqueIndex" json:"coin"`

	Enabled  bool   `gorm:"default:true" json:"enabled"`
	Category string `gorm:"size:20;default:L1s" json:"category"`

	DefaultLeverage   int             `gorm:"default:3" json:"default_leverage"`
	DefaultCollateral decimal.Decimal `gorm:"type:numeric;default:100" json:"default_collateral"`

	// MaxPositionValueUSD and MaxLeverage, when set, narrow the global limits
	// for this coin.
	MaxPositionValueUSD *decimal.Decimal `gorm:"type:numeric" json:"max_position_value_usd,omitempty"`
	MaxLeverage         *int             `json:"max_leverage,omitempty"`

	DefaultStopLossPct   *decimal.Decimal `gorm:"type:numeric" json:"default_stop_loss_pct,omitempty"`
	DefaultTakeProfitPct *decimal.Decimal `gorm:"type:numeric" json:"default_take_profit_pct,omitempty"`

	// TP1/TP2 partial-close defaults. Size percentages are relative to the
	// original entry size.
	TP1Pct     *decimal.Decimal `gorm:"type:numeric" json:"tp1_pct,omitempty"`
	TP1SizePct *decimal.Decimal `gorm:"type:numeric" json:"tp1_size_pct,omitempty"`
	TP2Pct     *decimal.Decimal `gorm:"type:numeric" json:"tp2_pct,omitempty"`
	TP2SizePct *decimal.Decimal `gorm:"type:numeric" json:"tp2_size_pct,omitempty"`

	// Exchange-reported asset metadata, refreshed from the gateway.
	VenueMaxLeverage  int        `gorm:"default:0" json:"venue_max_leverage"`
	VenueSizeDecimals int32      `gorm:"default:2" json:"venue_size_decimals"`
	VenueMetaUpdated  *time.Time `json:"venue_meta_updated,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CoinConfig) TableName() string {
	return "coin_configs"
}

// DefaultCoinConfig returns the fresh-row shape used when a coin is first
// seen in a webhook.
func DefaultCoinConfig(coin string) *CoinConfig {
	return &CoinConfig{
		Coin:              coin,
		Enabled:           true,
		Category:          CategoryL1s,
		DefaultLeverage:   3,
		DefaultCollateral: decimal.NewFromInt(100),
		VenueSizeDecimals: 2,
	}
}
