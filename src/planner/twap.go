package planner

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
)

func planTWAP(intent *model.TradeIntent, plan *model.OrderPlan, meta AssetMeta) (*model.OrderPlan, error) {
	params := intent.TWAP
	if params == nil {
		return nil, fmt.Errorf("%w: twap order without parameters", ErrInvalidPlan)
	}
	if params.Duration < minTWAPDuration {
		return nil, fmt.Errorf("%w: twap duration %s is below the %s minimum", ErrInvalidPlan, params.Duration, minTWAPDuration)
	}

	slices := params.Slices
	if slices == 0 {
		slices = int(params.Duration / defaultSliceInterval)
		if slices > maxSliceCount {
			slices = maxSliceCount
		}
	}
	if slices < minSliceCount || slices > maxSliceCount {
		return nil, fmt.Errorf("%w: twap slice count %d outside [%d,%d]", ErrInvalidPlan, slices, minSliceCount, maxSliceCount)
	}

	sliceSize := plan.EntrySize.DivRound(decimal.NewFromInt(int64(slices)), meta.SizeDecimals)
	if !sliceSize.IsPositive() {
		return nil, fmt.Errorf("%w: twap slice size rounds to zero for %s", ErrInvalidPlan, intent.Coin)
	}

	interval := params.Duration / time.Duration(slices)
	var jitter time.Duration
	if params.Randomize {
		jitter = interval / 2
	}

	plan.TWAP = &model.TWAPSchedule{
		Slices:      slices,
		SliceSize:   sliceSize,
		Interval:    interval,
		JitterBound: jitter,
	}

	for i := 0; i < slices; i++ {
		plan.Legs = append(plan.Legs, model.OrderLeg{
			Role:         model.LegEntry,
			Type:         model.OrderTypeMarket,
			Coin:         intent.Coin,
			IsBuy:        intent.IsBuy(),
			Size:         sliceSize,
			SizeFraction: decimal.NewFromInt(1).DivRound(decimal.NewFromInt(int64(slices)), 8),
			ReduceOnly:   intent.ReduceOnly,
		})
	}

	if err := appendProtectiveLegs(intent, plan, plan.EntryPrice, plan.EntrySize, meta); err != nil {
		return nil, err
	}
	return plan, nil
}
