package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"signalbridge/src/model"
	"signalbridge/src/utils"
)

// BatchResult is the outcome for one coin of a category batch.
type BatchResult struct {
	Coin   string
	Result *model.ExecutionResult
	Err    error
}

// RunBatch fans fn out over the coins with a bounded number in flight and a
// fixed pacing between launches. One coin failing never stops the others;
// results come back in input order.
func RunBatch(ctx context.Context, cfg Config, clock utils.Clock, coins []string,
	fn func(ctx context.Context, coin string) (*model.ExecutionResult, error)) []BatchResult {

	results := make([]BatchResult, len(coins))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.BatchMaxInFlight)

	for i, coin := range coins {
		if i > 0 && cfg.BatchPacing > 0 {
			if err := clock.Sleep(ctx, cfg.BatchPacing); err != nil {
				for j := i; j < len(coins); j++ {
					results[j] = BatchResult{Coin: coins[j], Err: err}
				}
				break
			}
		}
		i, coin := i, coin
		g.Go(func() error {
			res, err := fn(gctx, coin)
			results[i] = BatchResult{Coin: coin, Result: res, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return results
}
