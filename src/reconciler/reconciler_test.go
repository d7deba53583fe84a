package reconciler

// Test index:
// 1. TestCurrentStateDailyReset
// 2. TestRecordExecutionOpensTrade
// 3. TestReconcileClosesVanishedPosition
// 4. TestReconcilePausesAfterConsecutiveLosses
// 5. TestReconcileSelfHealsUntrackedPosition
// 6. TestCloseReasonInference

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalbridge/src/model"
	"signalbridge/src/repository"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time                                 { return c.now }
func (c *fakeClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fakeTrades struct {
	open    []model.TradeRecord
	created []*model.TradeRecord
	closed  map[uint]repository.TradeClose
}

func (f *fakeTrades) Create(_ context.Context, trade *model.TradeRecord) error {
	trade.ID = uint(len(f.created) + 100)
	f.created = append(f.created, trade)
	return nil
}

func (f *fakeTrades) ListOpen(context.Context) ([]model.TradeRecord, error) {
	return f.open, nil
}

func (f *fakeTrades) Close(_ context.Context, tradeID uint, c repository.TradeClose) error {
	if f.closed == nil {
		f.closed = make(map[uint]repository.TradeClose)
	}
	f.closed[tradeID] = c
	return nil
}

type fakeState struct {
	state      model.RiskState
	resets     int
	increments int
	pnls       []decimal.Decimal
	paused     *time.Time
}

func (f *fakeState) GetOrCreate(context.Context, time.Time) (*model.RiskState, error) {
	s := f.state
	return &s, nil
}

func (f *fakeState) ResetDaily(_ context.Context, _ uint, day time.Time) error {
	f.resets++
	f.state.Day = day
	f.state.DailyTradeCount = 0
	f.state.DailyRealizedPnL = decimal.Zero
	return nil
}

func (f *fakeState) IncrementTradeCount(context.Context, uint) error {
	f.increments++
	return nil
}

func (f *fakeState) RecordRealizedPnL(_ context.Context, _ uint, pnl decimal.Decimal) error {
	f.pnls = append(f.pnls, pnl)
	return nil
}

func (f *fakeState) Pause(_ context.Context, _ uint, until time.Time) error {
	f.paused = &until
	return nil
}

type fakeSettings struct{ settings model.RiskSettings }

func (f *fakeSettings) Get(context.Context) (*model.RiskSettings, error) {
	s := f.settings
	return &s, nil
}

type fakeActivity struct{ messages []string }

func (f *fakeActivity) Record(_ context.Context, _, _, message, _ string) {
	f.messages = append(f.messages, message)
}

func newTestReconciler(trades *fakeTrades, state *fakeState, clock *fakeClock) (*Reconciler, *fakeActivity) {
	activity := &fakeActivity{}
	settings := &fakeSettings{settings: *model.DefaultRiskSettings()}
	return New(trades, state, settings, activity, clock), activity
}

func noon(day int) time.Time {
	return time.Date(2024, 6, day, 12, 0, 0, 0, time.UTC)
}

func TestCurrentStateDailyReset(t *testing.T) {
	state := &fakeState{state: model.RiskState{
		ID:                1,
		Day:               time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC),
		DailyTradeCount:   7,
		DailyRealizedPnL:  dec("-120"),
		ConsecutiveLosses: 2,
	}}
	rec, _ := newTestReconciler(&fakeTrades{}, state, &fakeClock{now: noon(1)})

	got, err := rec.CurrentState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, state.resets)
	assert.Equal(t, 0, got.DailyTradeCount)
	assert.True(t, got.DailyRealizedPnL.IsZero())
	assert.Equal(t, 2, got.ConsecutiveLosses, "loss streak survives the rollover")
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), got.Day)
}

func TestRecordExecutionOpensTrade(t *testing.T) {
	trades := &fakeTrades{}
	state := &fakeState{state: model.RiskState{ID: 1, Day: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}}
	rec, _ := newTestReconciler(trades, state, &fakeClock{now: noon(1)})

	res := &model.ExecutionResult{
		Coin:           "BTC",
		Side:           model.SideLong,
		Source:         model.SourceWebhook,
		Leverage:       10,
		EntrySize:      dec("0.02"),
		CollateralUSD:  dec("100"),
		EntryPrice:     dec("50000"),
		StopLoss:       dec("49000"),
		EntrySubmitted: true,
		StartedAt:      noon(1),
	}

	require.NoError(t, rec.RecordExecution(context.Background(), res))

	require.Len(t, trades.created, 1)
	trade := trades.created[0]
	assert.Equal(t, model.TradeStatusOpen, trade.Status)
	require.NotNil(t, trade.StopLoss)
	assert.True(t, trade.StopLoss.Equal(dec("49000")))
	assert.Equal(t, 1, state.increments)

	// a failed execution books nothing
	require.NoError(t, rec.RecordExecution(context.Background(), &model.ExecutionResult{Coin: "ETH"}))
	assert.Len(t, trades.created, 1)
	assert.Equal(t, 1, state.increments)
}

func openTrade(id uint, coin string) model.TradeRecord {
	return model.TradeRecord{
		ID:            id,
		Coin:          coin,
		Side:          model.SideLong,
		Leverage:      10,
		Size:          dec("0.02"),
		CollateralUSD: dec("100"),
		EntryPrice:    dec("50000"),
		Status:        model.TradeStatusOpen,
	}
}

func snapshotWith(positions ...model.Position) *model.AccountSnapshot {
	return &model.AccountSnapshot{
		Equity:    dec("10000"),
		Positions: positions,
		Taken:     noon(1),
	}
}

func TestReconcileClosesVanishedPosition(t *testing.T) {
	trades := &fakeTrades{open: []model.TradeRecord{openTrade(1, "BTC")}}
	state := &fakeState{state: model.RiskState{ID: 1, Day: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}}
	rec, _ := newTestReconciler(trades, state, &fakeClock{now: noon(1)})

	// first snapshot still holds the position so its mark price is remembered
	withPos := snapshotWith(model.Position{
		Coin: "BTC", Size: dec("0.02"), EntryPrice: dec("50000"), MarkPrice: dec("51000"), Leverage: 10,
	})
	require.NoError(t, rec.Reconcile(context.Background(), withPos))
	assert.Empty(t, trades.closed)

	require.NoError(t, rec.Reconcile(context.Background(), snapshotWith()))

	closed, ok := trades.closed[1]
	require.True(t, ok, "vanished position must close its trade")
	assert.True(t, closed.ExitPrice.Equal(dec("51000")))
	// 2% move at 10x on $100 collateral
	assert.True(t, closed.PnL.Equal(dec("20")), "pnl %s", closed.PnL)
	assert.True(t, closed.PnLPercent.Equal(dec("20")))
	assert.Equal(t, model.CloseReasonManual, closed.Reason)

	require.Len(t, state.pnls, 1)
	assert.True(t, state.pnls[0].Equal(dec("20")))
	assert.Nil(t, state.paused)
}

func TestReconcilePausesAfterConsecutiveLosses(t *testing.T) {
	losing := openTrade(1, "BTC")
	trades := &fakeTrades{open: []model.TradeRecord{losing}}
	state := &fakeState{state: model.RiskState{
		ID:                1,
		Day:               time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		ConsecutiveLosses: 2, // default threshold is 3
	}}
	clock := &fakeClock{now: noon(1)}
	rec, activity := newTestReconciler(trades, state, clock)

	withPos := snapshotWith(model.Position{
		Coin: "BTC", Size: dec("0.02"), EntryPrice: dec("50000"), MarkPrice: dec("49500"), Leverage: 10,
	})
	require.NoError(t, rec.Reconcile(context.Background(), withPos))
	require.NoError(t, rec.Reconcile(context.Background(), snapshotWith()))

	require.Len(t, state.pnls, 1)
	assert.True(t, state.pnls[0].IsNegative())

	require.NotNil(t, state.paused, "third consecutive loss engages the breaker")
	assert.Equal(t, clock.now.Add(time.Hour), *state.paused)
	assert.NotEmpty(t, activity.messages)
}

func TestReconcileSelfHealsUntrackedPosition(t *testing.T) {
	trades := &fakeTrades{}
	state := &fakeState{state: model.RiskState{ID: 1, Day: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}}
	rec, _ := newTestReconciler(trades, state, &fakeClock{now: noon(1)})

	snap := snapshotWith(model.Position{
		Coin: "SOL", Size: dec("-5"), EntryPrice: dec("150"), MarkPrice: dec("149"),
		Leverage: 5, MarginUsed: dec("150"),
	})
	require.NoError(t, rec.Reconcile(context.Background(), snap))

	require.Len(t, trades.created, 1)
	healed := trades.created[0]
	assert.Equal(t, "SOL", healed.Coin)
	assert.Equal(t, model.SideShort, healed.Side)
	assert.Equal(t, "reconciler", healed.Source)
	assert.True(t, healed.Size.Equal(dec("5")))
}

func TestCloseReasonInference(t *testing.T) {
	rec, _ := newTestReconciler(&fakeTrades{}, &fakeState{}, &fakeClock{now: noon(1)})

	sl := dec("49000")
	tp := dec("52000")
	trade := openTrade(1, "BTC")
	trade.StopLoss = &sl
	trade.TakeProfit = &tp

	assert.Equal(t, model.CloseReasonStopLoss, rec.closeReason(&trade, dec("48900")))
	assert.Equal(t, model.CloseReasonTakeProfit, rec.closeReason(&trade, dec("52100")))
	assert.Equal(t, model.CloseReasonManual, rec.closeReason(&trade, dec("50500")))

	short := openTrade(2, "ETH")
	short.Side = model.SideShort
	shortSL := dec("2100")
	short.StopLoss = &shortSL
	assert.Equal(t, model.CloseReasonStopLoss, rec.closeReason(&short, dec("2150")))
}
