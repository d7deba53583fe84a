package planner

// Test index:
// 1. TestPlanMarketWithStopLoss
// 2. TestPlanLimitEntry
// 3. TestPlanTakeProfitLegs
// 4. TestPlanTakeProfitFractionSum
// 5. TestPlanTWAP
// 6. TestPlanTWAPValidation
// 7. TestPlanScaleSkew
// 8. TestPlanScaleValidation
// 9. TestPlanClose
// 10. TestStopAndTakeProfitPrices
// 11. TestPlanRejectsZeroPrice

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalbridge/src/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var btcMeta = AssetMeta{SizeDecimals: 5, MaxLeverage: 40}

func marketIntent() *model.TradeIntent {
	return &model.TradeIntent{
		Coin:          "BTC",
		Side:          model.SideLong,
		Leverage:      10,
		CollateralUSD: dec("100"),
		Style:         model.StyleMarket,
		StopLossPct:   decPtr("2"),
	}
}

func TestPlanMarketWithStopLoss(t *testing.T) {
	plan, err := Plan(marketIntent(), dec("50000"), btcMeta)
	require.NoError(t, err)

	require.Len(t, plan.Legs, 2)

	entry := plan.Legs[0]
	assert.Equal(t, model.LegEntry, entry.Role)
	assert.Equal(t, model.OrderTypeMarket, entry.Type)
	assert.True(t, entry.IsBuy)
	// 100 * 10 / 50000 = 0.02
	assert.True(t, entry.Size.Equal(dec("0.02")), "size %s", entry.Size)

	stop := plan.Legs[1]
	assert.Equal(t, model.LegStopLoss, stop.Role)
	assert.Equal(t, model.OrderTypeTrigger, stop.Type)
	assert.False(t, stop.IsBuy)
	assert.True(t, stop.ReduceOnly)
	assert.True(t, stop.Size.Equal(entry.Size))
	// 50000 * 0.98 = 49000
	assert.True(t, stop.Price.Equal(dec("49000")), "stop price %s", stop.Price)
}

func TestPlanLimitEntry(t *testing.T) {
	intent := marketIntent()
	intent.Style = model.StyleLimit
	intent.Limit = &model.LimitParams{Price: dec("48000")}

	plan, err := Plan(intent, dec("50000"), btcMeta)
	require.NoError(t, err)

	entry := plan.Legs[0]
	assert.Equal(t, model.OrderTypeLimit, entry.Type)
	assert.True(t, entry.Price.Equal(dec("48000")))
	// sized against the limit price, not the mark
	assert.True(t, entry.Size.Equal(dec("0.02083")), "size %s", entry.Size)
	// stop computed off the limit price: 48000 * 0.98 = 47040
	assert.True(t, plan.Legs[1].Price.Equal(dec("47040")))

	intent.Limit = nil
	_, err = Plan(intent, dec("50000"), btcMeta)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestPlanTakeProfitLegs(t *testing.T) {
	intent := marketIntent()
	intent.Side = model.SideShort
	intent.TakeProfits = []model.TakeProfitTarget{
		{TriggerPct: dec("3"), CloseFraction: dec("0.5")},
		{TriggerPct: dec("6"), CloseFraction: dec("0.5")},
	}

	plan, err := Plan(intent, dec("50000"), btcMeta)
	require.NoError(t, err)
	require.Len(t, plan.Legs, 4)

	tp1 := plan.Legs[2]
	assert.Equal(t, model.LegTakeProfit, tp1.Role)
	assert.True(t, tp1.IsBuy, "short take-profit buys back")
	assert.True(t, tp1.ReduceOnly)
	// short: trigger below entry, 50000 * 0.97
	assert.True(t, tp1.Price.Equal(dec("48500")), "tp1 price %s", tp1.Price)
	assert.True(t, tp1.Size.Equal(dec("0.01")))

	tp2 := plan.Legs[3]
	assert.True(t, tp2.Price.Equal(dec("47000")))
}

func TestPlanTakeProfitFractionSum(t *testing.T) {
	intent := marketIntent()
	intent.TakeProfits = []model.TakeProfitTarget{
		{TriggerPct: dec("3"), CloseFraction: dec("0.7")},
		{TriggerPct: dec("6"), CloseFraction: dec("0.4")},
	}

	_, err := Plan(intent, dec("50000"), btcMeta)
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestPlanTWAP(t *testing.T) {
	intent := marketIntent()
	intent.StopLossPct = nil
	intent.Style = model.StyleTWAP
	intent.TWAP = &model.TWAPParams{Duration: 30 * time.Minute, Slices: 10, Randomize: true}

	plan, err := Plan(intent, dec("50000"), btcMeta)
	require.NoError(t, err)
	require.NotNil(t, plan.TWAP)

	assert.Equal(t, 10, plan.TWAP.Slices)
	assert.Equal(t, 3*time.Minute, plan.TWAP.Interval)
	assert.Equal(t, 90*time.Second, plan.TWAP.JitterBound)
	assert.True(t, plan.TWAP.SliceSize.Equal(dec("0.002")))
	assert.Len(t, plan.Legs, 10)
	for _, leg := range plan.Legs {
		assert.Equal(t, model.LegEntry, leg.Role)
		assert.Equal(t, model.OrderTypeMarket, leg.Type)
	}
}

func TestPlanTWAPValidation(t *testing.T) {
	intent := marketIntent()
	intent.Style = model.StyleTWAP

	intent.TWAP = &model.TWAPParams{Duration: 2 * time.Minute}
	_, err := Plan(intent, dec("50000"), btcMeta)
	assert.ErrorIs(t, err, ErrInvalidPlan, "duration below minimum")

	intent.TWAP = &model.TWAPParams{Duration: 30 * time.Minute, Slices: 51}
	_, err = Plan(intent, dec("50000"), btcMeta)
	assert.ErrorIs(t, err, ErrInvalidPlan, "too many slices")

	// unset slice count defaults to one per minute
	intent.TWAP = &model.TWAPParams{Duration: 10 * time.Minute}
	plan, err := Plan(intent, dec("50000"), btcMeta)
	require.NoError(t, err)
	assert.Equal(t, 10, plan.TWAP.Slices)
}

func TestPlanScaleSkew(t *testing.T) {
	intent := marketIntent()
	intent.StopLossPct = nil
	intent.Style = model.StyleScale
	intent.Scale = &model.ScaleParams{
		PriceFrom: dec("48000"),
		PriceTo:   dec("50000"),
		NumOrders: 5,
		Skew:      dec("2"),
	}

	plan, err := Plan(intent, dec("50000"), btcMeta)
	require.NoError(t, err)
	require.Len(t, plan.Legs, 5)

	assert.True(t, plan.Legs[0].Price.Equal(dec("48000")))
	assert.True(t, plan.Legs[4].Price.Equal(dec("50000")))
	for i := 1; i < 5; i++ {
		assert.True(t, plan.Legs[i].Price.GreaterThan(plan.Legs[i-1].Price))
		// skew above 1 puts the largest rung at price_from
		assert.True(t, plan.Legs[i].Size.LessThanOrEqual(plan.Legs[i-1].Size),
			"leg %d size %s should not exceed leg %d size %s", i, plan.Legs[i].Size, i-1, plan.Legs[i-1].Size)
	}
	assert.True(t, plan.Legs[0].Size.GreaterThan(plan.Legs[4].Size))
}

func TestPlanScaleValidation(t *testing.T) {
	intent := marketIntent()
	intent.Style = model.StyleScale

	cases := []struct {
		name  string
		scale model.ScaleParams
	}{
		{"equal prices", model.ScaleParams{PriceFrom: dec("50000"), PriceTo: dec("50000"), NumOrders: 5, Skew: dec("1")}},
		{"too few orders", model.ScaleParams{PriceFrom: dec("48000"), PriceTo: dec("50000"), NumOrders: 1, Skew: dec("1")}},
		{"too many orders", model.ScaleParams{PriceFrom: dec("48000"), PriceTo: dec("50000"), NumOrders: 51, Skew: dec("1")}},
		{"skew too small", model.ScaleParams{PriceFrom: dec("48000"), PriceTo: dec("50000"), NumOrders: 5, Skew: dec("0.05")}},
		{"skew too large", model.ScaleParams{PriceFrom: dec("48000"), PriceTo: dec("50000"), NumOrders: 5, Skew: dec("11")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scale := tc.scale
			intent.Scale = &scale
			_, err := Plan(intent, dec("50000"), btcMeta)
			assert.ErrorIs(t, err, ErrInvalidPlan)
		})
	}
}

func TestPlanClose(t *testing.T) {
	pos := &model.Position{
		Coin:      "ETH",
		Size:      dec("-1.5"),
		MarkPrice: dec("3000"),
	}

	plan := PlanClose(pos, model.SourceManual, "close-eth-1")
	require.Len(t, plan.Legs, 1)

	leg := plan.Legs[0]
	assert.True(t, leg.IsBuy, "closing a short buys")
	assert.True(t, leg.ReduceOnly)
	assert.True(t, leg.Size.Equal(dec("1.5")))
	assert.Equal(t, model.SideLong, plan.Side)
}

func TestStopAndTakeProfitPrices(t *testing.T) {
	entry := dec("2000")

	assert.True(t, StopLossPrice(entry, model.SideLong, dec("5")).Equal(dec("1900")))
	assert.True(t, StopLossPrice(entry, model.SideShort, dec("5")).Equal(dec("2100")))
	assert.True(t, TakeProfitPrice(entry, model.SideLong, dec("5")).Equal(dec("2100")))
	assert.True(t, TakeProfitPrice(entry, model.SideShort, dec("5")).Equal(dec("1900")))
}

func TestPlanRejectsZeroPrice(t *testing.T) {
	_, err := Plan(marketIntent(), decimal.Zero, btcMeta)
	assert.True(t, errors.Is(err, ErrInvalidPlan))
}
