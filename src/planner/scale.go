package planner

import (
	"fmt"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
)

func planScale(intent *model.TradeIntent, plan *model.OrderPlan, meta AssetMeta) (*model.OrderPlan, error) {
	params := intent.Scale
	if params == nil {
		return nil, fmt.Errorf("%w: scale order without parameters", ErrInvalidPlan)
	}
	if params.NumOrders < minSliceCount || params.NumOrders > maxSliceCount {
		return nil, fmt.Errorf("%w: scale order count %d outside [%d,%d]", ErrInvalidPlan, params.NumOrders, minSliceCount, maxSliceCount)
	}
	if params.PriceFrom.Equal(params.PriceTo) {
		return nil, fmt.Errorf("%w: scale price range is empty", ErrInvalidPlan)
	}
	if !params.PriceFrom.IsPositive() || !params.PriceTo.IsPositive() {
		return nil, fmt.Errorf("%w: scale prices must be positive", ErrInvalidPlan)
	}
	if params.Skew.LessThan(minSkew) || params.Skew.GreaterThan(maxSkew) {
		return nil, fmt.Errorf("%w: scale skew %s outside [%s,%s]", ErrInvalidPlan, params.Skew, minSkew, maxSkew)
	}

	n := params.NumOrders
	prices := ladderPrices(params.PriceFrom, params.PriceTo, n)
	weights := skewWeights(params.Skew, n)

	weightSum := decimal.Zero
	for _, w := range weights {
		weightSum = weightSum.Add(w)
	}

	avgPrice := decimal.Zero
	for i, p := range prices {
		avgPrice = avgPrice.Add(p.Mul(weights[i]))
	}
	avgPrice = avgPrice.Div(weightSum)

	totalSize := intent.Notional().Div(avgPrice).RoundDown(meta.SizeDecimals)
	if !totalSize.IsPositive() {
		return nil, fmt.Errorf("%w: scale total size rounds to zero for %s", ErrInvalidPlan, intent.Coin)
	}
	plan.EntryPrice = avgPrice
	plan.EntrySize = totalSize

	for i := 0; i < n; i++ {
		legSize := totalSize.Mul(weights[i]).DivRound(weightSum, meta.SizeDecimals)
		if !legSize.IsPositive() {
			return nil, fmt.Errorf("%w: scale leg %d rounds to zero", ErrInvalidPlan, i+1)
		}
		plan.Legs = append(plan.Legs, model.OrderLeg{
			Role:         model.LegEntry,
			Type:         model.OrderTypeLimit,
			Coin:         intent.Coin,
			IsBuy:        intent.IsBuy(),
			Size:         legSize,
			SizeFraction: weights[i].DivRound(weightSum, 8),
			Price:        prices[i],
			ReduceOnly:   intent.ReduceOnly,
		})
	}

	if err := appendProtectiveLegs(intent, plan, avgPrice, totalSize, meta); err != nil {
		return nil, err
	}
	return plan, nil
}

// ladderPrices spaces n prices evenly from price_from to price_to, both ends
// included.
func ladderPrices(from, to decimal.Decimal, n int) []decimal.Decimal {
	step := to.Sub(from).Div(decimal.NewFromInt(int64(n - 1)))
	prices := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		prices[i] = from.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	prices[n-1] = to
	return prices
}

// skewWeights returns the per-rung size multipliers. A skew above 1 weights
// the price_from end heaviest; below 1 weights the price_to end.
func skewWeights(skew decimal.Decimal, n int) []decimal.Decimal {
	one := decimal.NewFromInt(1)
	span := skew.Sub(one)
	denom := decimal.NewFromInt(int64(n - 1))
	weights := make([]decimal.Decimal, n)
	for i := 0; i < n; i++ {
		// mult_i = 1 + (skew-1) * (n-1-i)/(n-1)
		frac := decimal.NewFromInt(int64(n - 1 - i)).Div(denom)
		weights[i] = one.Add(span.Mul(frac))
	}
	return weights
}
