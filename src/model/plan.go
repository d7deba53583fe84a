package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LegRole string

const (
	LegEntry      LegRole = "entry"
	LegStopLoss   LegRole = "stop_loss"
	LegTakeProfit LegRole = "take_profit"
)

type OrderType string

const (
	OrderTypeMarket  OrderType = "market"
	OrderTypeLimit   OrderType = "limit"
	OrderTypeTrigger OrderType = "trigger"
)

// OrderLeg is one concrete order to be submitted to the exchange.
type OrderLeg struct {
	Role LegRole   `json:"role"`
	Type OrderType `json:"type"`

	Coin  string          `json:"coin"`
	IsBuy bool            `json:"is_buy"`
	Size  decimal.Decimal `json:"size"`

	// SizeFraction is the share of the original entry size this leg covers,
	// in (0,1]. Entry and stop-loss legs always carry 1.
	SizeFraction decimal.Decimal `json:"size_fraction"`

	// Price is the limit price for limit legs and the trigger price for
	// trigger legs. Zero for market legs.
	Price decimal.Decimal `json:"price"`

	ReduceOnly bool `json:"reduce_only"`

	// TPSL distinguishes protective trigger legs on the wire ("sl" or "tp").
	TPSL string `json:"tpsl,omitempty"`
}

// TWAPSchedule describes the time pacing of a sliced plan. The planner only
// decides the shape; the execution coordinator owns the clock.
type TWAPSchedule struct {
	Slices    int
	SliceSize decimal.Decimal
	Interval  time.Duration
	// JitterBound, when positive, allows each inter-slice delay to be
	// shortened or stretched by up to this amount.
	JitterBound time.Duration
}

// OrderPlan is the ordered output of the planner. The entry leg is always
// first and is the only leg allowed to increase exposure; every protective
// leg is reduce-only and sized against the original entry.
type OrderPlan struct {
	Coin     string
	Side     Side
	Style    OrderStyle
	Leverage int

	// EntryPrice is the reference price the plan was built against (mark
	// price for market entries, limit price otherwise).
	EntryPrice decimal.Decimal
	EntrySize  decimal.Decimal

	Legs []OrderLeg
	TWAP *TWAPSchedule

	IdempotencyKey string
	Source         IntentSource
	Indicator      string
	CollateralUSD  decimal.Decimal
}

// EntryLegs returns the legs that open exposure, in submission order.
func (p *OrderPlan) EntryLegs() []OrderLeg {
	out := make([]OrderLeg, 0, len(p.Legs))
	for _, leg := range p.Legs {
		if leg.Role == LegEntry {
			out = append(out, leg)
		}
	}
	return out
}

// ProtectiveLegs returns stop-loss and take-profit legs, in plan order.
func (p *OrderPlan) ProtectiveLegs() []OrderLeg {
	out := make([]OrderLeg, 0, len(p.Legs))
	for _, leg := range p.Legs {
		if leg.Role != LegEntry {
			out = append(out, leg)
		}
	}
	return out
}

// StopLossPrice returns the stop trigger price, or zero when the plan has no
// stop-loss leg.
func (p *OrderPlan) StopLossPrice() decimal.Decimal {
	for _, leg := range p.Legs {
		if leg.Role == LegStopLoss {
			return leg.Price
		}
	}
	return decimal.Zero
}

// FirstTakeProfitPrice returns the nearest take-profit trigger, or zero.
func (p *OrderPlan) FirstTakeProfitPrice() decimal.Decimal {
	for _, leg := range p.Legs {
		if leg.Role == LegTakeProfit {
			return leg.Price
		}
	}
	return decimal.Zero
}

type LegStatus string

const (
	LegSubmitted LegStatus = "submitted"
	LegFailed    LegStatus = "failed"
	LegSkipped   LegStatus = "skipped"
)

// LegResult records the outcome of submitting one leg.
type LegResult struct {
	Leg      OrderLeg        `json:"leg"`
	Status   LegStatus       `json:"status"`
	OrderID  int64           `json:"order_id,omitempty"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error,omitempty"`
}

// ExecutionResult is the coordinator's report for one plan. Already-submitted
// legs are never rolled back; failures are reported individually.
type ExecutionResult struct {
	Coin           string       `json:"coin"`
	IdempotencyKey string       `json:"idempotency_key,omitempty"`
	Source         IntentSource `json:"source"`
	Indicator      string       `json:"indicator,omitempty"`

	// Duplicate is set when the idempotency window already saw this key and
	// nothing was submitted.
	Duplicate bool `json:"duplicate"`

	EntrySubmitted bool            `json:"entry_submitted"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	EntrySize      decimal.Decimal `json:"entry_size"`
	Leverage       int             `json:"leverage"`
	CollateralUSD  decimal.Decimal `json:"collateral_usd"`
	Side           Side            `json:"side"`
	StopLoss       decimal.Decimal `json:"stop_loss"`
	TakeProfit     decimal.Decimal `json:"take_profit"`

	Submitted []LegResult `json:"submitted"`
	Failed    []LegResult `json:"failed"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Ok reports whether every leg of the plan was submitted.
func (r *ExecutionResult) Ok() bool {
	return !r.Duplicate && len(r.Failed) == 0 && len(r.Submitted) > 0
}

// FirstError returns the first recorded leg failure message, or empty.
func (r *ExecutionResult) FirstError() string {
	for _, lr := range r.Failed {
		if lr.Error != "" {
			return lr.Error
		}
	}
	return ""
}
