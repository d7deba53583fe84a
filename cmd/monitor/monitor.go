package monitor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	logger "github.com/sirupsen/logrus"

	"signalbridge/src/controller"
	"signalbridge/src/executor"
	"signalbridge/src/gateway"
	"signalbridge/src/reconciler"
	"signalbridge/src/repository"
	"signalbridge/src/utils"
)

// Monitor is the position watchdog. It polls the exchange account state,
// settles closed positions into the trade log and keeps venue metadata
// fresh. It is the only writer of risk counters, so exactly one instance
// should run per account.
type Monitor struct {
	Log *logger.Entry
}

func (m *Monitor) Start() error {
	cfg := GetConfig()
	gwCfg := gateway.GetConfig()

	gw := gateway.NewClient(gwCfg)
	clock := utils.RealClock()
	trades := repository.NewTradeRepository()
	state := repository.NewRiskStateRepository()
	settings := repository.NewSettingsRepository()
	coins := repository.NewCoinConfigRepository()
	activity := repository.NewActivityLogRepository()

	rec := reconciler.New(trades, state, settings, activity, clock)
	exec := executor.NewCoordinator(executor.GetConfig(), gw, clock)
	ctrl := controller.NewTradeController(controller.GetConfig(), executor.GetConfig(),
		gw, exec, rec, settings, coins, activity, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		m.Log.Info("Monitor stopping")
		cancel()
	}()

	m.Log.WithField("interval", cfg.PollInterval).Info("Monitor started")

	var lastMetaRefresh time.Time
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		m.poll(ctx, gw, gwCfg.MainWallet, rec)

		if time.Since(lastMetaRefresh) >= cfg.MetaRefreshInterval {
			m.refreshMeta(ctx, ctrl, coins)
			lastMetaRefresh = time.Now()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (m *Monitor) poll(ctx context.Context, gw *gateway.Client, wallet string, rec *reconciler.Reconciler) {
	pollCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	snap, err := gw.AccountState(pollCtx, wallet)
	if err != nil {
		m.Log.WithError(err).Warn("Snapshot fetch failed, skipping cycle")
		return
	}
	if err := rec.Reconcile(pollCtx, snap); err != nil {
		m.Log.WithError(err).Error("Reconcile failed")
	}
}

func (m *Monitor) refreshMeta(ctx context.Context, ctrl *controller.TradeController, coins *repository.CoinConfigRepository) {
	metaCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := ctrl.RefreshVenueMeta(metaCtx, coins); err != nil {
		m.Log.WithError(err).Warn("Venue metadata refresh failed")
	}
}
