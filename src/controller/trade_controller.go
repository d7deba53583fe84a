package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/executor"
	"signalbridge/src/gateway"
	"signalbridge/src/metrics"
	"signalbridge/src/model"
	"signalbridge/src/planner"
	"signalbridge/src/risk"
	"signalbridge/src/utils"
)

// ErrNoPosition is returned when a close intent finds nothing to close.
var ErrNoPosition = errors.New("no open position")

type exchangeGateway interface {
	AccountState(ctx context.Context, address string) (*model.AccountSnapshot, error)
	Mids(ctx context.Context) (map[string]decimal.Decimal, error)
	AssetMeta(ctx context.Context) (map[string]gateway.AssetMeta, error)
	OpenOrders(ctx context.Context, address string) ([]gateway.OpenOrder, error)
	CancelOrder(ctx context.Context, coin string, oid int64) error
	ModifyOrder(ctx context.Context, coin string, oid int64, newPrice, newSize decimal.Decimal) error
}

type orderExecutor interface {
	Execute(ctx context.Context, plan *model.OrderPlan) *model.ExecutionResult
	CancelTWAP(coin string) bool
}

type riskStateSource interface {
	CurrentState(ctx context.Context) (*model.RiskState, error)
	RecordExecution(ctx context.Context, res *model.ExecutionResult) error
	Reconcile(ctx context.Context, snap *model.AccountSnapshot) error
}

type settingsSource interface {
	Get(ctx context.Context) (*model.RiskSettings, error)
}

type coinConfigSource interface {
	FindOrDefault(ctx context.Context, coin string) (*model.CoinConfig, error)
	ListEnabledByCategory(ctx context.Context, category string) ([]model.CoinConfig, error)
}

type activitySink interface {
	Record(ctx context.Context, level, category, message, details string)
}

// TradeController runs the full signal pipeline: snapshot, risk evaluation,
// planning, execution, bookkeeping. One instance serves all endpoints.
type TradeController struct {
	cfg      Config
	execCfg  executor.Config
	gw       exchangeGateway
	exec     orderExecutor
	rec      riskStateSource
	settings settingsSource
	coins    coinConfigSource
	activity activitySink
	clock    utils.Clock

	// feed is an optional live mid-price cache. REST mids stay the fallback.
	feed *gateway.MidsFeed

	mu        sync.Mutex
	coinLocks map[string]*sync.Mutex
}

func NewTradeController(cfg Config, execCfg executor.Config, gw exchangeGateway, exec orderExecutor,
	rec riskStateSource, settings settingsSource, coins coinConfigSource, activity activitySink,
	clock utils.Clock) *TradeController {
	return &TradeController{
		cfg:       cfg,
		execCfg:   execCfg,
		gw:        gw,
		exec:      exec,
		rec:       rec,
		settings:  settings,
		coins:     coins,
		activity:  activity,
		clock:     clock,
		coinLocks: make(map[string]*sync.Mutex),
	}
}

// WithMidsFeed attaches a live mid-price cache consulted before the REST
// mids endpoint.
func (c *TradeController) WithMidsFeed(feed *gateway.MidsFeed) *TradeController {
	c.feed = feed
	return c
}

// lockCoin serializes executions per coin so two signals for the same market
// cannot interleave their risk checks and entries.
func (c *TradeController) lockCoin(coin string) func() {
	c.mu.Lock()
	l, ok := c.coinLocks[coin]
	if !ok {
		l = &sync.Mutex{}
		c.coinLocks[coin] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// ExecuteIntent runs one trade intent end to end and returns the risk
// decision alongside the execution result. A rejected intent returns a nil
// result and a nil error.
func (c *TradeController) ExecuteIntent(ctx context.Context, intent *model.TradeIntent) (*model.ExecutionResult, risk.Decision, error) {
	unlock := c.lockCoin(intent.Coin)
	defer unlock()

	metrics.SignalsReceived.WithLabelValues(string(intent.Source)).Inc()

	snap, err := c.gw.AccountState(ctx, c.cfg.WalletAddress)
	if err != nil {
		return nil, risk.Decision{}, fmt.Errorf("account snapshot: %w", err)
	}

	coinCfg, err := c.coins.FindOrDefault(ctx, intent.Coin)
	if err != nil {
		return nil, risk.Decision{}, err
	}
	c.applyCoinDefaults(intent, coinCfg)

	settings, err := c.settings.Get(ctx)
	if err != nil {
		return nil, risk.Decision{}, err
	}
	state, err := c.rec.CurrentState(ctx)
	if err != nil {
		return nil, risk.Decision{}, err
	}

	decision := risk.Evaluate(risk.Input{
		Intent:           intent,
		Limits:           settings,
		CoinCfg:          coinCfg,
		State:            state,
		Snapshot:         snap,
		VenueMaxLeverage: coinCfg.VenueMaxLeverage,
		Now:              c.clock.Now(),
	})
	if !decision.Allowed {
		metrics.SignalsRejected.WithLabelValues(string(decision.Reason)).Inc()
		logger.WithFields(logger.Fields{
			"coin":   intent.Coin,
			"reason": decision.Reason,
		}).Warn("Signal rejected by risk engine")
		c.activity.Record(ctx, "warning", "risk",
			fmt.Sprintf("Rejected %s signal for %s", intent.Source, intent.Coin), decision.Message)
		return nil, decision, nil
	}

	var plan *model.OrderPlan
	if intent.ClosePosition {
		pos := snap.FindPosition(intent.Coin)
		if pos == nil {
			return nil, decision, fmt.Errorf("%w: %s", ErrNoPosition, intent.Coin)
		}
		plan = planner.PlanClose(pos, intent.Source, intent.IdempotencyKey)
	} else {
		mark, err := c.markPrice(ctx, intent.Coin)
		if err != nil {
			return nil, decision, err
		}
		plan, err = planner.Plan(intent, mark, planner.AssetMeta{
			SizeDecimals: coinCfg.VenueSizeDecimals,
			MaxLeverage:  coinCfg.VenueMaxLeverage,
		})
		if err != nil {
			return nil, decision, err
		}
	}

	res := c.exec.Execute(ctx, plan)

	if !intent.ClosePosition {
		if err := c.rec.RecordExecution(ctx, res); err != nil {
			logger.WithError(err).WithField("coin", intent.Coin).Error("Failed to book execution")
		}
	}
	return res, decision, nil
}

// ExecuteCategory fans a signal out over every enabled coin of a category.
func (c *TradeController) ExecuteCategory(ctx context.Context, category string, template *model.TradeIntent) ([]executor.BatchResult, error) {
	configs, err := c.coins.ListEnabledByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no enabled coins in category %s", category)
	}

	coins := make([]string, len(configs))
	for i, cfg := range configs {
		coins[i] = cfg.Coin
	}

	logger.WithFields(logger.Fields{"category": category, "coins": len(coins)}).
		Info("Executing category batch")

	return executor.RunBatch(ctx, c.execCfg, c.clock, coins,
		func(ctx context.Context, coin string) (*model.ExecutionResult, error) {
			intent := *template
			intent.Coin = coin
			intent.Source = model.SourceCategoryBatch
			if template.IdempotencyKey != "" {
				intent.IdempotencyKey = template.IdempotencyKey + ":" + coin
			}
			res, decision, err := c.ExecuteIntent(ctx, &intent)
			if err != nil {
				return nil, err
			}
			if !decision.Allowed {
				return nil, fmt.Errorf("rejected: %s", decision.Message)
			}
			return res, nil
		}), nil
}

// ClosePosition closes one coin's position at market.
func (c *TradeController) ClosePosition(ctx context.Context, coin string, source model.IntentSource) (*model.ExecutionResult, error) {
	res, _, err := c.ExecuteIntent(ctx, &model.TradeIntent{
		Coin:          coin,
		ClosePosition: true,
		ReduceOnly:    true,
		Style:         model.StyleMarket,
		Source:        source,
	})
	return res, err
}

// CloseAll closes every open position, then reconciles so the trade log
// catches up immediately.
func (c *TradeController) CloseAll(ctx context.Context) ([]executor.BatchResult, error) {
	snap, err := c.gw.AccountState(ctx, c.cfg.WalletAddress)
	if err != nil {
		return nil, err
	}
	if len(snap.Positions) == 0 {
		return nil, nil
	}

	coins := make([]string, len(snap.Positions))
	for i := range snap.Positions {
		coins[i] = snap.Positions[i].Coin
	}

	results := executor.RunBatch(ctx, c.execCfg, c.clock, coins,
		func(ctx context.Context, coin string) (*model.ExecutionResult, error) {
			return c.ClosePosition(ctx, coin, model.SourceManual)
		})

	if after, err := c.gw.AccountState(ctx, c.cfg.WalletAddress); err == nil {
		if err := c.rec.Reconcile(ctx, after); err != nil {
			logger.WithError(err).Error("Post close-all reconcile failed")
		}
	}
	return results, nil
}

// CancelTWAP stops a running TWAP schedule for a coin.
func (c *TradeController) CancelTWAP(coin string) bool {
	return c.exec.CancelTWAP(coin)
}

// Snapshot exposes the current account state for the dashboard.
func (c *TradeController) Snapshot(ctx context.Context) (*model.AccountSnapshot, error) {
	return c.gw.AccountState(ctx, c.cfg.WalletAddress)
}

// OpenOrders lists the wallet's resting orders.
func (c *TradeController) OpenOrders(ctx context.Context) ([]gateway.OpenOrder, error) {
	return c.gw.OpenOrders(ctx, c.cfg.WalletAddress)
}

// CancelOrder removes one resting order from the book.
func (c *TradeController) CancelOrder(ctx context.Context, coin string, oid int64) error {
	if err := c.gw.CancelOrder(ctx, coin, oid); err != nil {
		return err
	}
	c.activity.Record(ctx, "info", "order",
		fmt.Sprintf("Cancelled order %d on %s", oid, coin), "")
	return nil
}

// ModifyOrder moves a resting order to a new price and, when newSize is
// non-zero, a new size.
func (c *TradeController) ModifyOrder(ctx context.Context, coin string, oid int64, newPrice, newSize decimal.Decimal) error {
	if !newPrice.IsPositive() {
		return fmt.Errorf("%w: modify price must be positive", planner.ErrInvalidPlan)
	}
	if err := c.gw.ModifyOrder(ctx, coin, oid, newPrice, newSize); err != nil {
		return err
	}
	c.activity.Record(ctx, "info", "order",
		fmt.Sprintf("Modified order %d on %s to %s", oid, coin, newPrice.String()), "")
	return nil
}

func (c *TradeController) markPrice(ctx context.Context, coin string) (decimal.Decimal, error) {
	if c.feed != nil {
		if mid, ok := c.feed.Get(coin); ok && mid.IsPositive() {
			return mid, nil
		}
	}

	mids, err := c.gw.Mids(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("mid prices: %w", err)
	}
	mid, ok := mids[coin]
	if !ok || !mid.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no mid price for %s", gateway.ErrCoinNotListed, coin)
	}
	return mid, nil
}

// applyCoinDefaults fills the blanks of an intent from the coin's stored
// configuration.
func (c *TradeController) applyCoinDefaults(intent *model.TradeIntent, cfg *model.CoinConfig) {
	if intent.ClosePosition {
		return
	}
	if intent.Leverage == 0 {
		intent.Leverage = cfg.DefaultLeverage
	}
	if intent.CollateralUSD.IsZero() {
		intent.CollateralUSD = cfg.DefaultCollateral
	}
	if intent.StopLossPct == nil && cfg.DefaultStopLossPct != nil {
		sl := *cfg.DefaultStopLossPct
		intent.StopLossPct = &sl
	}
	if len(intent.TakeProfits) > 0 {
		return
	}
	if cfg.TP1Pct != nil && cfg.TP1SizePct != nil {
		intent.TakeProfits = append(intent.TakeProfits, model.TakeProfitTarget{
			TriggerPct:    *cfg.TP1Pct,
			CloseFraction: cfg.TP1SizePct.Div(decimal.NewFromInt(100)),
		})
		if cfg.TP2Pct != nil && cfg.TP2SizePct != nil {
			intent.TakeProfits = append(intent.TakeProfits, model.TakeProfitTarget{
				TriggerPct:    *cfg.TP2Pct,
				CloseFraction: cfg.TP2SizePct.Div(decimal.NewFromInt(100)),
			})
		}
		return
	}
	if cfg.DefaultTakeProfitPct != nil {
		intent.TakeProfits = append(intent.TakeProfits, model.TakeProfitTarget{
			TriggerPct:    *cfg.DefaultTakeProfitPct,
			CloseFraction: decimal.NewFromInt(1),
		})
	}
}

type venueMetaStore interface {
	List(ctx context.Context) ([]model.CoinConfig, error)
	UpdateVenueMeta(ctx context.Context, coin string, maxLeverage int, sizeDecimals int32, at time.Time) error
}

// RefreshVenueMeta pulls the exchange's asset metadata into the coin configs.
// Rows refreshed within the configured interval are left alone.
func (c *TradeController) RefreshVenueMeta(ctx context.Context, store venueMetaStore) error {
	meta, err := c.gw.AssetMeta(ctx)
	if err != nil {
		return fmt.Errorf("asset metadata: %w", err)
	}
	configs, err := store.List(ctx)
	if err != nil {
		return err
	}

	now := c.clock.Now()
	for _, cfg := range configs {
		m, ok := meta[cfg.Coin]
		if !ok {
			continue
		}
		if cfg.VenueMetaUpdated != nil && now.Sub(*cfg.VenueMetaUpdated) < c.cfg.MetaRefreshInterval {
			continue
		}
		if err := store.UpdateVenueMeta(ctx, cfg.Coin, m.MaxLeverage, m.SizeDecimals, now); err != nil {
			logger.WithError(err).WithField("coin", cfg.Coin).Warn("Failed to refresh venue metadata")
		}
	}
	return nil
}
