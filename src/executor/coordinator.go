package executor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/gateway"
	"signalbridge/src/metrics"
	"signalbridge/src/model"
	"signalbridge/src/utils"
)

// Gateway is the slice of the exchange client the coordinator needs.
type Gateway interface {
	PlaceOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.OrderAck, error)
	UpdateLeverage(ctx context.Context, coin string, leverage int, isCross bool) error
}

// Coordinator submits order plans to the exchange. It owns the retry policy,
// the idempotency window and the lifecycle of running TWAP schedules. Legs
// are submitted strictly in plan order: the entry first, protective legs only
// after the entry is acknowledged.
type Coordinator struct {
	cfg   Config
	gw    Gateway
	clock utils.Clock

	cache *idempotencyCache

	twapMu      sync.Mutex
	twapCancels map[string]context.CancelFunc
}

func NewCoordinator(cfg Config, gw Gateway, clock utils.Clock) *Coordinator {
	return &Coordinator{
		cfg:         cfg,
		gw:          gw,
		clock:       clock,
		cache:       newIdempotencyCache(cfg.IdempotencyTTL, clock),
		twapCancels: make(map[string]context.CancelFunc),
	}
}

// Execute submits the plan. Already-submitted legs are never rolled back on a
// later failure; every leg's outcome lands in the result.
func (c *Coordinator) Execute(ctx context.Context, plan *model.OrderPlan) *model.ExecutionResult {
	res := &model.ExecutionResult{
		Coin:           plan.Coin,
		IdempotencyKey: plan.IdempotencyKey,
		Source:         plan.Source,
		Indicator:      plan.Indicator,
		EntryPrice:     plan.EntryPrice,
		EntrySize:      plan.EntrySize,
		Leverage:       plan.Leverage,
		CollateralUSD:  plan.CollateralUSD,
		Side:           plan.Side,
		StopLoss:       plan.StopLossPrice(),
		TakeProfit:     plan.FirstTakeProfitPrice(),
		StartedAt:      c.clock.Now(),
	}

	if !c.cache.Claim(plan.IdempotencyKey) {
		logger.WithFields(logger.Fields{"coin": plan.Coin, "key": plan.IdempotencyKey}).
			Warn("duplicate signal ignored")
		metrics.DuplicateSignals.Inc()
		res.Duplicate = true
		res.FinishedAt = c.clock.Now()
		return res
	}

	if plan.Leverage > 0 {
		if err := c.gw.UpdateLeverage(ctx, plan.Coin, plan.Leverage, false); err != nil {
			logger.WithError(err).WithField("coin", plan.Coin).Warn("leverage update failed, keeping current setting")
		}
	}

	if plan.TWAP != nil {
		c.executeTWAP(ctx, plan, res)
	} else {
		c.executePlain(ctx, plan, res)
	}

	if !res.EntrySubmitted {
		// nothing hit the book, let the same signal run again
		c.cache.Release(plan.IdempotencyKey)
	}
	res.FinishedAt = c.clock.Now()
	return res
}

func (c *Coordinator) executePlain(ctx context.Context, plan *model.OrderPlan, res *model.ExecutionResult) {
	entries := plan.EntryLegs()
	for i, leg := range entries {
		if i > 0 && c.cfg.LegPacing > 0 {
			if err := c.clock.Sleep(ctx, c.cfg.LegPacing); err != nil {
				c.skipRemaining(entries[i:], plan.ProtectiveLegs(), res, err.Error())
				return
			}
		}
		lr := c.submitLeg(ctx, leg)
		c.recordLeg(res, lr)
	}

	if !res.EntrySubmitted {
		for _, leg := range plan.ProtectiveLegs() {
			res.Failed = append(res.Failed, model.LegResult{Leg: leg, Status: model.LegSkipped, Error: "entry not submitted"})
		}
		return
	}

	for _, leg := range plan.ProtectiveLegs() {
		c.recordLeg(res, c.submitLeg(ctx, leg))
	}
}

func (c *Coordinator) executeTWAP(ctx context.Context, plan *model.OrderPlan, res *model.ExecutionResult) {
	entries := plan.EntryLegs()
	first := c.submitLeg(ctx, entries[0])
	c.recordLeg(res, first)

	if first.Status != model.LegSubmitted {
		c.skipRemaining(entries[1:], plan.ProtectiveLegs(), res, "first slice failed")
		return
	}

	// protective legs cover the full schedule and go up right after the
	// first slice is on the book
	for _, leg := range plan.ProtectiveLegs() {
		c.recordLeg(res, c.submitLeg(ctx, leg))
	}

	if len(entries) > 1 {
		c.startTWAPTail(plan, entries[1:])
	}
}

// startTWAPTail paces the remaining slices in the background so a long
// schedule does not hold the caller. The schedule is cancellable per coin.
func (c *Coordinator) startTWAPTail(plan *model.OrderPlan, remaining []model.OrderLeg) {
	twapCtx, cancel := context.WithCancel(context.Background())

	c.twapMu.Lock()
	if prev, ok := c.twapCancels[plan.Coin]; ok {
		prev()
	}
	c.twapCancels[plan.Coin] = cancel
	c.twapMu.Unlock()

	go func() {
		defer func() {
			c.twapMu.Lock()
			if c.twapCancels[plan.Coin] != nil {
				delete(c.twapCancels, plan.Coin)
			}
			c.twapMu.Unlock()
			cancel()
		}()

		log := logger.WithFields(logger.Fields{"coin": plan.Coin, "slices": plan.TWAP.Slices})
		for i, leg := range remaining {
			if err := c.clock.Sleep(twapCtx, c.sliceDelay(plan.TWAP)); err != nil {
				log.WithField("remaining", len(remaining)-i).Info("twap schedule cancelled")
				return
			}
			lr := c.submitLeg(twapCtx, leg)
			if lr.Status != model.LegSubmitted {
				log.WithField("slice", i+2).WithField("error", lr.Error).Error("twap slice failed, aborting schedule")
				return
			}
		}
		log.Info("twap schedule complete")
	}()
}

func (c *Coordinator) sliceDelay(s *model.TWAPSchedule) time.Duration {
	if s.JitterBound <= 0 {
		return s.Interval
	}
	offset := time.Duration(rand.Int63n(int64(2*s.JitterBound))) - s.JitterBound
	return s.Interval + offset
}

// CancelTWAP stops the running schedule for a coin. Slices already on the
// book stay there.
func (c *Coordinator) CancelTWAP(coin string) bool {
	c.twapMu.Lock()
	defer c.twapMu.Unlock()
	cancel, ok := c.twapCancels[coin]
	if !ok {
		return false
	}
	cancel()
	delete(c.twapCancels, coin)
	return true
}

// submitLeg places one order, retrying only transient failures. Delays grow
// linearly with the attempt number.
func (c *Coordinator) submitLeg(ctx context.Context, leg model.OrderLeg) model.LegResult {
	req := gateway.OrderRequest{
		Coin:       leg.Coin,
		IsBuy:      leg.IsBuy,
		Size:       leg.Size,
		Type:       leg.Type,
		Price:      leg.Price,
		ReduceOnly: leg.ReduceOnly,
		TPSL:       leg.TPSL,
		ClientOID:  uuid.NewString(),
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		ack, err := c.gw.PlaceOrder(ctx, req)
		if err == nil {
			return model.LegResult{
				Leg:      leg,
				Status:   model.LegSubmitted,
				OrderID:  ack.OID,
				AvgPrice: ack.AvgPrice,
				Attempts: attempt,
			}
		}
		lastErr = err
		if !gateway.IsTransient(err) {
			return model.LegResult{Leg: leg, Status: model.LegFailed, Attempts: attempt, Error: err.Error()}
		}
		metrics.OrderRetries.Inc()
		if attempt == c.cfg.MaxAttempts {
			break
		}
		logger.WithFields(logger.Fields{"coin": leg.Coin, "role": leg.Role, "attempt": attempt}).
			WithError(err).Warn("transient order failure, retrying")
		if err := c.clock.Sleep(ctx, c.cfg.RetryBaseDelay*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return model.LegResult{Leg: leg, Status: model.LegFailed, Attempts: c.cfg.MaxAttempts, Error: lastErr.Error()}
}

func (c *Coordinator) recordLeg(res *model.ExecutionResult, lr model.LegResult) {
	if lr.Status == model.LegSubmitted {
		res.Submitted = append(res.Submitted, lr)
		metrics.OrdersSubmitted.WithLabelValues(string(lr.Leg.Role)).Inc()
		if lr.Leg.Role == model.LegEntry {
			res.EntrySubmitted = true
			if lr.AvgPrice.IsPositive() {
				res.EntryPrice = lr.AvgPrice
			}
		}
		return
	}
	res.Failed = append(res.Failed, lr)
	metrics.OrdersFailed.WithLabelValues(string(lr.Leg.Role)).Inc()
	logger.WithFields(logger.Fields{"coin": lr.Leg.Coin, "role": lr.Leg.Role, "attempts": lr.Attempts}).
		WithField("error", lr.Error).Error("order leg failed")
}

func (c *Coordinator) skipRemaining(entries, protective []model.OrderLeg, res *model.ExecutionResult, reason string) {
	for _, leg := range entries {
		res.Failed = append(res.Failed, model.LegResult{Leg: leg, Status: model.LegSkipped, Error: reason})
	}
	for _, leg := range protective {
		res.Failed = append(res.Failed, model.LegResult{Leg: leg, Status: model.LegSkipped, Error: reason})
	}
}
