package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
)

// ErrInvalidPlan marks deterministic planner validation failures. They are
// never retried and never reach the gateway.
var ErrInvalidPlan = errors.New("invalid plan")

const (
	minTWAPDuration = 5 * time.Minute
	minSliceCount   = 2
	maxSliceCount   = 50
	defaultSliceInterval = time.Minute
)

var (
	oneHundred = decimal.NewFromInt(100)
	minSkew    = decimal.RequireFromString("0.1")
	maxSkew    = decimal.NewFromInt(10)
)

// AssetMeta is the slice of venue metadata the planner needs.
type AssetMeta struct {
	SizeDecimals int32
	MaxLeverage  int
}

// Plan turns a validated intent into an ordered sequence of order legs. The
// entry leg always comes first; protective legs are reduce-only and sized
// against the original entry size.
func Plan(intent *model.TradeIntent, markPrice decimal.Decimal, meta AssetMeta) (*model.OrderPlan, error) {
	if markPrice.IsZero() || markPrice.IsNegative() {
		return nil, fmt.Errorf("%w: no price available for %s", ErrInvalidPlan, intent.Coin)
	}

	entryPrice := markPrice
	if intent.Style == model.StyleLimit {
		if intent.Limit == nil || !intent.Limit.Price.IsPositive() {
			return nil, fmt.Errorf("%w: limit order requires a positive price", ErrInvalidPlan)
		}
		entryPrice = intent.Limit.Price
	}

	size := entrySize(intent, entryPrice, meta.SizeDecimals)
	if !size.IsPositive() {
		return nil, fmt.Errorf("%w: computed size is zero for %s at %s", ErrInvalidPlan, intent.Coin, entryPrice)
	}

	plan := &model.OrderPlan{
		Coin:           intent.Coin,
		Side:           intent.Side,
		Style:          intent.Style,
		Leverage:       intent.Leverage,
		EntryPrice:     entryPrice,
		EntrySize:      size,
		IdempotencyKey: intent.IdempotencyKey,
		Source:         intent.Source,
		Indicator:      intent.Indicator,
		CollateralUSD:  intent.CollateralUSD,
	}

	switch intent.Style {
	case model.StyleTWAP:
		return planTWAP(intent, plan, meta)
	case model.StyleScale:
		return planScale(intent, plan, meta)
	}

	entryType := model.OrderTypeMarket
	if intent.Style == model.StyleLimit {
		entryType = model.OrderTypeLimit
	}
	entryLegPrice := decimal.Zero
	if entryType == model.OrderTypeLimit {
		entryLegPrice = entryPrice
	}

	plan.Legs = append(plan.Legs, model.OrderLeg{
		Role:         model.LegEntry,
		Type:         entryType,
		Coin:         intent.Coin,
		IsBuy:        intent.IsBuy(),
		Size:         size,
		SizeFraction: decimal.NewFromInt(1),
		Price:        entryLegPrice,
		ReduceOnly:   intent.ReduceOnly,
	})

	if err := appendProtectiveLegs(intent, plan, entryPrice, size, meta); err != nil {
		return nil, err
	}

	return plan, nil
}

func entrySize(intent *model.TradeIntent, price decimal.Decimal, sizeDecimals int32) decimal.Decimal {
	return intent.Notional().Div(price).RoundDown(sizeDecimals)
}

func appendProtectiveLegs(intent *model.TradeIntent, plan *model.OrderPlan, entryPrice, size decimal.Decimal, meta AssetMeta) error {
	if intent.StopLossPct != nil {
		if !intent.StopLossPct.IsPositive() {
			return fmt.Errorf("%w: stop-loss percent must be positive", ErrInvalidPlan)
		}
		plan.Legs = append(plan.Legs, model.OrderLeg{
			Role:         model.LegStopLoss,
			Type:         model.OrderTypeTrigger,
			Coin:         intent.Coin,
			IsBuy:        !intent.IsBuy(),
			Size:         size, // the stop always covers the full entry
			SizeFraction: decimal.NewFromInt(1),
			Price:        StopLossPrice(entryPrice, intent.Side, *intent.StopLossPct),
			ReduceOnly:   true,
			TPSL:         "sl",
		})
	}

	fractionSum := decimal.Zero
	for _, tp := range intent.TakeProfits {
		if !tp.TriggerPct.IsPositive() || !tp.CloseFraction.IsPositive() {
			return fmt.Errorf("%w: take-profit legs need positive trigger and fraction", ErrInvalidPlan)
		}
		fractionSum = fractionSum.Add(tp.CloseFraction)
	}
	if fractionSum.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: take-profit fractions sum to %s (max 1)", ErrInvalidPlan, fractionSum)
	}

	for _, tp := range intent.TakeProfits {
		legSize := size.Mul(tp.CloseFraction).RoundDown(meta.SizeDecimals)
		if !legSize.IsPositive() {
			continue
		}
		plan.Legs = append(plan.Legs, model.OrderLeg{
			Role:         model.LegTakeProfit,
			Type:         model.OrderTypeTrigger,
			Coin:         intent.Coin,
			IsBuy:        !intent.IsBuy(),
			Size:         legSize,
			SizeFraction: tp.CloseFraction,
			Price:        TakeProfitPrice(entryPrice, intent.Side, tp.TriggerPct),
			ReduceOnly:   true,
			TPSL:         "tp",
		})
	}

	return nil
}

// StopLossPrice computes the stop trigger: below entry for longs, above for
// shorts.
func StopLossPrice(entryPrice decimal.Decimal, side model.Side, pct decimal.Decimal) decimal.Decimal {
	offset := entryPrice.Mul(pct).Div(oneHundred)
	if side == model.SideLong {
		return entryPrice.Sub(offset)
	}
	return entryPrice.Add(offset)
}

// TakeProfitPrice computes the profit trigger: above entry for longs, below
// for shorts.
func TakeProfitPrice(entryPrice decimal.Decimal, side model.Side, pct decimal.Decimal) decimal.Decimal {
	offset := entryPrice.Mul(pct).Div(oneHundred)
	if side == model.SideLong {
		return entryPrice.Add(offset)
	}
	return entryPrice.Sub(offset)
}

// PlanClose builds a full-position reduce-only market close for an open
// position.
func PlanClose(pos *model.Position, source model.IntentSource, idempotencyKey string) *model.OrderPlan {
	size := pos.Size.Abs()
	return &model.OrderPlan{
		Coin:           pos.Coin,
		Side:           pos.Side().Opposite(),
		Style:          model.StyleMarket,
		EntryPrice:     pos.MarkPrice,
		EntrySize:      size,
		IdempotencyKey: idempotencyKey,
		Source:         source,
		Legs: []model.OrderLeg{{
			Role:         model.LegEntry,
			Type:         model.OrderTypeMarket,
			Coin:         pos.Coin,
			IsBuy:        pos.Side() == model.SideShort,
			Size:         size,
			SizeFraction: decimal.NewFromInt(1),
			ReduceOnly:   true,
		}},
	}
}
