package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbridge_signals_received_total",
		Help: "Signals received, by source.",
	}, []string{"source"})

	SignalsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbridge_signals_rejected_total",
		Help: "Signals rejected by the risk engine, by reason.",
	}, []string{"reason"})

	DuplicateSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalbridge_duplicate_signals_total",
		Help: "Signals dropped by the idempotency window.",
	})

	OrdersSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbridge_orders_submitted_total",
		Help: "Order legs acknowledged by the exchange, by role.",
	}, []string{"role"})

	OrdersFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbridge_orders_failed_total",
		Help: "Order legs that failed or were skipped, by role.",
	}, []string{"role"})

	OrderRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalbridge_order_retries_total",
		Help: "Transient order failures that triggered a retry.",
	})

	TradesClosed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signalbridge_trades_closed_total",
		Help: "Trades closed during reconciliation, by close reason.",
	}, []string{"reason"})

	TradingPaused = promauto.NewCounter(prometheus.CounterOpts{
		Name: "signalbridge_trading_paused_total",
		Help: "Times the consecutive-loss circuit breaker engaged.",
	})

	AccountEquity = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signalbridge_account_equity_usd",
		Help: "Account equity from the latest snapshot.",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "signalbridge_open_positions",
		Help: "Open positions in the latest snapshot.",
	})
)
