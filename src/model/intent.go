package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Opposite returns the closing direction for a position side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

type OrderStyle string

const (
	StyleMarket OrderStyle = "market"
	StyleLimit  OrderStyle = "limit"
	StyleTWAP   OrderStyle = "twap"
	StyleScale  OrderStyle = "scale"
)

type IntentSource string

const (
	SourceWebhook       IntentSource = "webhook"
	SourceManual        IntentSource = "manual"
	SourceCategoryBatch IntentSource = "category_batch"
)

// TakeProfitTarget is one partial take-profit leg request. CloseFraction is
// relative to the original entry size, not the remaining size.
type TakeProfitTarget struct {
	TriggerPct    decimal.Decimal
	CloseFraction decimal.Decimal
}

type LimitParams struct {
	Price decimal.Decimal
}

type TWAPParams struct {
	Duration  time.Duration
	Slices    int // 0 = derive from duration
	Randomize bool
}

type ScaleParams struct {
	PriceFrom decimal.Decimal
	PriceTo   decimal.Decimal
	NumOrders int
	Skew      decimal.Decimal
}

// TradeIntent is the ephemeral input to the trading pipeline. It is built once
// per webhook delivery or API call and never persisted.
type TradeIntent struct {
	Coin          string
	Side          Side
	Leverage      int
	CollateralUSD decimal.Decimal

	StopLossPct *decimal.Decimal
	TakeProfits []TakeProfitTarget

	Style OrderStyle
	Limit *LimitParams
	TWAP  *TWAPParams
	Scale *ScaleParams

	// ClosePosition marks a de-risking intent: it bypasses every risk rule
	// except the circuit-breaker pause.
	ClosePosition bool
	ReduceOnly    bool

	Source         IntentSource
	IdempotencyKey string
	Indicator      string
}

// Notional is the position value the intent asks for.
func (i *TradeIntent) Notional() decimal.Decimal {
	return i.CollateralUSD.Mul(decimal.NewFromInt(int64(i.Leverage)))
}

// IsBuy reports whether the entry order buys the base asset.
func (i *TradeIntent) IsBuy() bool {
	return i.Side == SideLong
}
