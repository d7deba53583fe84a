package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeStatusOpen       = "open"
	TradeStatusClosed     = "closed"
	TradeStatusLiquidated = "liquidated"
)

const (
	CloseReasonManual      = "manual"
	CloseReasonStopLoss    = "stop_loss"
	CloseReasonTakeProfit  = "take_profit"
	CloseReasonSignal      = "signal"
	CloseReasonLiquidation = "liquidation"
)

// TradeRecord is the persisted audit row for one entry accepted by the
// exchange. The state reconciler is its sole writer.
type TradeRecord struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	Time time.Time `gorm:"index;column:timestamp" json:"timestamp"`

	Coin     string `gorm:"size:20;not null;index" json:"coin"`
	Side     Side   `gorm:"size:10;not null" json:"side"`
	Source   string `gorm:"size:20" json:"source"`
	Leverage int    `gorm:"default:1" json:"leverage"`

	Size          decimal.Decimal `gorm:"type:numeric;not null" json:"size"`
	CollateralUSD decimal.Decimal `gorm:"type:numeric;not null" json:"collateral_usd"`
	EntryPrice    decimal.Decimal `gorm:"type:numeric;not null" json:"entry_price"`

	ExitPrice  *decimal.Decimal `gorm:"type:numeric" json:"exit_price,omitempty"`
	PnL        *decimal.Decimal `gorm:"type:numeric" json:"pnl,omitempty"`
	PnLPercent *decimal.Decimal `gorm:"type:numeric" json:"pnl_percent,omitempty"`

	StopLoss   *decimal.Decimal `gorm:"type:numeric" json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `gorm:"type:numeric" json:"take_profit,omitempty"`

	Status      string `gorm:"size:20;default:open;index" json:"status"`
	CloseReason string `gorm:"size:50" json:"close_reason,omitempty"`

	OrderID   string `gorm:"size:100" json:"order_id,omitempty"`
	Indicator string `gorm:"size:100" json:"indicator,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

// DailyStats aggregates today's closed trades for the dashboard.
type DailyStats struct {
	TotalTrades   int             `json:"total_trades"`
	OpenTrades    int             `json:"open_trades"`
	ClosedTrades  int             `json:"closed_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	TotalPnL      decimal.Decimal `json:"total_pnl"`
	WinRate       decimal.Decimal `json:"win_rate"`
}
