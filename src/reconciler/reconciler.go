package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/metrics"
	"signalbridge/src/model"
	"signalbridge/src/repository"
	"signalbridge/src/utils"
)

type tradeStore interface {
	Create(ctx context.Context, trade *model.TradeRecord) error
	ListOpen(ctx context.Context) ([]model.TradeRecord, error)
	Close(ctx context.Context, tradeID uint, c repository.TradeClose) error
}

type stateStore interface {
	GetOrCreate(ctx context.Context, now time.Time) (*model.RiskState, error)
	ResetDaily(ctx context.Context, stateID uint, day time.Time) error
	IncrementTradeCount(ctx context.Context, stateID uint) error
	RecordRealizedPnL(ctx context.Context, stateID uint, pnl decimal.Decimal) error
	Pause(ctx context.Context, stateID uint, until time.Time) error
}

type settingsStore interface {
	Get(ctx context.Context) (*model.RiskSettings, error)
}

type activityStore interface {
	Record(ctx context.Context, level, category, message, details string)
}

// Reconciler is the sole writer of trade rows and risk counters. It compares
// each account snapshot against the book of open trades and settles the
// difference; the snapshot is always treated as ground truth.
type Reconciler struct {
	trades   tradeStore
	state    stateStore
	settings settingsStore
	activity activityStore
	clock    utils.Clock

	mu sync.Mutex
	// lastMarks remembers the most recent mark price per coin so a vanished
	// position can be closed at a sane exit price.
	lastMarks map[string]decimal.Decimal
}

func New(trades tradeStore, state stateStore, settings settingsStore, activity activityStore, clock utils.Clock) *Reconciler {
	return &Reconciler{
		trades:    trades,
		state:     state,
		settings:  settings,
		activity:  activity,
		clock:     clock,
		lastMarks: make(map[string]decimal.Decimal),
	}
}

// CurrentState loads the risk counters, rolling the daily fields over when a
// new UTC day has started since the last write. The loss streak and an active
// pause survive the rollover.
func (r *Reconciler) CurrentState(ctx context.Context) (*model.RiskState, error) {
	now := r.clock.Now()
	state, err := r.state.GetOrCreate(ctx, now)
	if err != nil {
		return nil, err
	}

	if !utils.SameUTCDay(state.Day, now) {
		day := utils.StartOfDayUTC(now)
		if err := r.state.ResetDaily(ctx, state.ID, day); err != nil {
			return nil, err
		}
		logger.WithField("day", day).Info("Daily risk counters reset")
		state.Day = day
		state.DailyTradeCount = 0
		state.DailyRealizedPnL = decimal.Zero
	}
	return state, nil
}

// RecordExecution books an accepted entry: a new open trade row and a bumped
// daily counter. Close-only executions touch neither.
func (r *Reconciler) RecordExecution(ctx context.Context, res *model.ExecutionResult) error {
	if !res.EntrySubmitted {
		return nil
	}

	state, err := r.CurrentState(ctx)
	if err != nil {
		return err
	}

	trade := &model.TradeRecord{
		Time:          res.StartedAt,
		Coin:          res.Coin,
		Side:          res.Side,
		Source:        string(res.Source),
		Leverage:      res.Leverage,
		Size:          res.EntrySize,
		CollateralUSD: res.CollateralUSD,
		EntryPrice:    res.EntryPrice,
		Status:        model.TradeStatusOpen,
		Indicator:     res.Indicator,
	}
	if res.StopLoss.IsPositive() {
		sl := res.StopLoss
		trade.StopLoss = &sl
	}
	if res.TakeProfit.IsPositive() {
		tp := res.TakeProfit
		trade.TakeProfit = &tp
	}
	if err := r.trades.Create(ctx, trade); err != nil {
		return err
	}
	if err := r.state.IncrementTradeCount(ctx, state.ID); err != nil {
		return err
	}

	r.activity.Record(ctx, "info", "trade", fmt.Sprintf("Opened %s %s", trade.Side, trade.Coin),
		fmt.Sprintf("size=%s entry=%s leverage=%dx", trade.Size, trade.EntryPrice, trade.Leverage))
	return nil
}

// Reconcile settles the book of open trades against a fresh snapshot. Trades
// whose position vanished are closed and their realized PnL flows into the
// daily counters; positions with no matching trade get a self-healed row.
func (r *Reconciler) Reconcile(ctx context.Context, snap *model.AccountSnapshot) error {
	equity, _ := snap.Equity.Float64()
	metrics.AccountEquity.Set(equity)
	metrics.OpenPositions.Set(float64(snap.OpenCount()))

	state, err := r.CurrentState(ctx)
	if err != nil {
		return err
	}
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return err
	}

	open, err := r.trades.ListOpen(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(open))
	for i := range open {
		trade := &open[i]
		seen[trade.Coin] = true
		if snap.FindPosition(trade.Coin) != nil {
			continue
		}
		if err := r.closeVanished(ctx, trade, state, settings); err != nil {
			logger.WithError(err).WithField("coin", trade.Coin).Error("Failed to close vanished trade")
		}
	}

	for i := range snap.Positions {
		pos := &snap.Positions[i]
		if !seen[pos.Coin] {
			r.selfHeal(ctx, pos)
		}
	}

	r.rememberMarks(snap)
	return nil
}

func (r *Reconciler) closeVanished(ctx context.Context, trade *model.TradeRecord, state *model.RiskState, settings *model.RiskSettings) error {
	now := r.clock.Now()
	exit := r.exitPrice(trade)
	pctMove := priceMovePct(trade.Side, trade.EntryPrice, exit)
	pnlPct := pctMove.Mul(decimal.NewFromInt(int64(trade.Leverage)))
	pnl := trade.CollateralUSD.Mul(pnlPct).Div(decimal.NewFromInt(100))
	reason := r.closeReason(trade, exit)

	err := r.trades.Close(ctx, trade.ID, repository.TradeClose{
		ExitPrice:  exit,
		PnL:        pnl,
		PnLPercent: pnlPct,
		Status:     model.TradeStatusClosed,
		Reason:     reason,
		At:         now,
	})
	if err != nil {
		return err
	}
	if err := r.state.RecordRealizedPnL(ctx, state.ID, pnl); err != nil {
		return err
	}
	metrics.TradesClosed.WithLabelValues(reason).Inc()

	logger.WithFields(logger.Fields{
		"coin":   trade.Coin,
		"reason": reason,
		"pnl":    pnl,
	}).Info("Trade closed")
	r.activity.Record(ctx, "info", "trade", fmt.Sprintf("Closed %s %s (%s)", trade.Side, trade.Coin, reason),
		fmt.Sprintf("exit=%s pnl=%s", exit, pnl))

	if pnl.IsNegative() {
		losses := state.ConsecutiveLosses + 1
		state.ConsecutiveLosses = losses
		if losses >= settings.ConsecutiveLossThreshold && !state.PausedAt(now) {
			until := now.Add(settings.PauseCooldown())
			if err := r.state.Pause(ctx, state.ID, until); err != nil {
				return err
			}
			state.TradingPausedUntil = &until
			metrics.TradingPaused.Inc()
			r.activity.Record(ctx, "warning", "risk",
				fmt.Sprintf("Trading paused after %d consecutive losses", losses),
				fmt.Sprintf("until=%s", until.Format(time.RFC3339)))
		}
	} else {
		state.ConsecutiveLosses = 0
	}
	state.DailyRealizedPnL = state.DailyRealizedPnL.Add(pnl)
	return nil
}

// selfHeal books a snapshot position the trade log never saw, so the two
// views converge on the snapshot.
func (r *Reconciler) selfHeal(ctx context.Context, pos *model.Position) {
	logger.WithFields(logger.Fields{
		"coin": pos.Coin,
		"size": pos.Size,
	}).Warn("Position on exchange with no open trade, booking it")

	trade := &model.TradeRecord{
		Time:          r.clock.Now(),
		Coin:          pos.Coin,
		Side:          pos.Side(),
		Source:        "reconciler",
		Leverage:      pos.Leverage,
		Size:          pos.Size.Abs(),
		CollateralUSD: pos.MarginUsed,
		EntryPrice:    pos.EntryPrice,
		Status:        model.TradeStatusOpen,
	}
	if err := r.trades.Create(ctx, trade); err != nil {
		logger.WithError(err).WithField("coin", pos.Coin).Error("Failed to self-heal trade row")
		return
	}
	r.activity.Record(ctx, "warning", "reconciler",
		fmt.Sprintf("Booked untracked %s position", pos.Coin), "")
}

func (r *Reconciler) exitPrice(trade *model.TradeRecord) decimal.Decimal {
	r.mu.Lock()
	mark, ok := r.lastMarks[trade.Coin]
	r.mu.Unlock()
	if ok && mark.IsPositive() {
		return mark
	}
	return trade.EntryPrice
}

// closeReason infers why the position disappeared from where the exit price
// sits relative to the protective levels.
func (r *Reconciler) closeReason(trade *model.TradeRecord, exit decimal.Decimal) string {
	if trade.StopLoss != nil {
		if (trade.Side == model.SideLong && exit.LessThanOrEqual(*trade.StopLoss)) ||
			(trade.Side == model.SideShort && exit.GreaterThanOrEqual(*trade.StopLoss)) {
			return model.CloseReasonStopLoss
		}
	}
	if trade.TakeProfit != nil {
		if (trade.Side == model.SideLong && exit.GreaterThanOrEqual(*trade.TakeProfit)) ||
			(trade.Side == model.SideShort && exit.LessThanOrEqual(*trade.TakeProfit)) {
			return model.CloseReasonTakeProfit
		}
	}
	return model.CloseReasonManual
}

func (r *Reconciler) rememberMarks(snap *model.AccountSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range snap.Positions {
		pos := &snap.Positions[i]
		if pos.MarkPrice.IsPositive() {
			r.lastMarks[pos.Coin] = pos.MarkPrice
		}
	}
}

func priceMovePct(side model.Side, entry, exit decimal.Decimal) decimal.Decimal {
	if entry.IsZero() {
		return decimal.Zero
	}
	move := exit.Sub(entry).Div(entry).Mul(decimal.NewFromInt(100))
	if side == model.SideShort {
		move = move.Neg()
	}
	return move
}
