package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/controller"
	"signalbridge/src/executor"
	"signalbridge/src/gateway"
	"signalbridge/src/model"
	"signalbridge/src/planner"
	"signalbridge/src/repository"
	"signalbridge/src/utils"
)

// TradeHandler executes a manual trade. Same payload as the webhook minus
// the secret; the route sits behind the operator's network.
func TradeHandler(runner signalRunner) http.HandlerFunc {
	return styledTradeHandler(runner, "")
}

// LimitOrderHandler is TradeHandler with the order type pinned to limit, for
// the dashboard's dedicated form.
func LimitOrderHandler(runner signalRunner) http.HandlerFunc {
	return styledTradeHandler(runner, "limit")
}

// TwapOrderHandler pins the order type to twap.
func TwapOrderHandler(runner signalRunner) http.HandlerFunc {
	return styledTradeHandler(runner, "twap")
}

// ScaleOrderHandler pins the order type to scale.
func ScaleOrderHandler(runner signalRunner) http.HandlerFunc {
	return styledTradeHandler(runner, "scale")
}

func styledTradeHandler(runner signalRunner, orderType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		if orderType != "" {
			payload.OrderType = orderType
		}

		intent, err := intentFromPayload(&payload, model.SourceManual)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, decision, err := runner.ExecuteIntent(r.Context(), intent)
		if err != nil {
			if errors.Is(err, planner.ErrInvalidPlan) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.WithError(err).Error("manual trade failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if !decision.Allowed {
			writeRejection(w, decision)
			return
		}
		writeResult(w, res)
	}
}

type twapCanceller interface {
	CancelTWAP(coin string) bool
}

// TwapCancelHandler stops a running TWAP schedule.
func TwapCancelHandler(c twapCanceller) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Coin string `json:"coin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Coin == "" {
			writeError(w, http.StatusBadRequest, "coin is required")
			return
		}

		coin := controller.NormalizeCoin(body.Coin)
		if !c.CancelTWAP(coin) {
			writeError(w, http.StatusNotFound, "no running twap for "+coin)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "cancelled", "coin": coin})
	}
}

type positionCloser interface {
	ClosePosition(ctx context.Context, coin string, source model.IntentSource) (*model.ExecutionResult, error)
	CloseAll(ctx context.Context) ([]executor.BatchResult, error)
}

// CloseHandler closes one position at market.
func CloseHandler(closer positionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Coin string `json:"coin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Coin == "" {
			writeError(w, http.StatusBadRequest, "coin is required")
			return
		}

		res, err := closer.ClosePosition(r.Context(), controller.NormalizeCoin(body.Coin), model.SourceManual)
		if err != nil {
			if errors.Is(err, controller.ErrNoPosition) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			logger.WithError(err).Error("close failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeResult(w, res)
	}
}

// CloseAllHandler flattens the whole account.
func CloseAllHandler(closer positionCloser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := closer.CloseAll(r.Context())
		if err != nil {
			logger.WithError(err).Error("close-all failed")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeBatch(w, results)
	}
}

type orderManager interface {
	OpenOrders(ctx context.Context) ([]gateway.OpenOrder, error)
	CancelOrder(ctx context.Context, coin string, oid int64) error
	ModifyOrder(ctx context.Context, coin string, oid int64, newPrice, newSize decimal.Decimal) error
}

// OpenOrdersHandler lists resting orders on the venue.
func OpenOrdersHandler(mgr orderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orders, err := mgr.OpenOrders(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to list open orders")
			writeError(w, http.StatusBadGateway, "exchange unreachable")
			return
		}
		if orders == nil {
			orders = []gateway.OpenOrder{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "orders": orders})
	}
}

// CancelOrderHandler pulls one resting order by coin and order id.
func CancelOrderHandler(mgr orderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Coin    string `json:"coin"`
			OrderID int64  `json:"order_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Coin == "" || body.OrderID <= 0 {
			writeError(w, http.StatusBadRequest, "coin and order_id are required")
			return
		}

		coin := controller.NormalizeCoin(body.Coin)
		if err := mgr.CancelOrder(r.Context(), coin, body.OrderID); err != nil {
			logger.WithError(err).WithField("coin", coin).Error("cancel order failed")
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "cancelled", "coin": coin, "order_id": body.OrderID})
	}
}

// ModifyOrderHandler moves a resting order to a new price and optionally a new size.
func ModifyOrderHandler(mgr orderManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Coin     string          `json:"coin"`
			OrderID  int64           `json:"order_id"`
			NewPrice decimal.Decimal `json:"new_price"`
			NewSize  decimal.Decimal `json:"new_size"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Coin == "" || body.OrderID <= 0 {
			writeError(w, http.StatusBadRequest, "coin and order_id are required")
			return
		}

		coin := controller.NormalizeCoin(body.Coin)
		if err := mgr.ModifyOrder(r.Context(), coin, body.OrderID, body.NewPrice, body.NewSize); err != nil {
			if errors.Is(err, planner.ErrInvalidPlan) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.WithError(err).WithField("coin", coin).Error("modify order failed")
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "modified", "coin": coin, "order_id": body.OrderID})
	}
}

type accountViewer interface {
	Snapshot(ctx context.Context) (*model.AccountSnapshot, error)
}

// AccountHandler returns the live account snapshot.
func AccountHandler(viewer accountViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := viewer.Snapshot(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to fetch account snapshot")
			writeError(w, http.StatusBadGateway, "exchange unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "account": snap})
	}
}

type tradeSearcher interface {
	Search(ctx context.Context, opts repository.TradeSearchOptions) ([]model.TradeRecord, error)
	DailyStats(ctx context.Context, dayStart time.Time) (*model.DailyStats, error)
}

// TradesHandler lists recent trades with optional coin/status filters.
func TradesHandler(repo tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := repository.TradeSearchOptions{
			Coin:   controller.NormalizeCoin(r.URL.Query().Get("coin")),
			Status: r.URL.Query().Get("status"),
		}
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			limit, err := strconv.Atoi(limitParam)
			if err != nil || limit <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			opts.Limit = limit
		}

		trades, err := repo.Search(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to search trades")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "trades": trades})
	}
}

// DailyStatsHandler aggregates today's trades.
func DailyStatsHandler(repo tradeSearcher, clock utils.Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := repo.DailyStats(r.Context(), utils.StartOfDayUTC(clock.Now()))
		if err != nil {
			logger.WithError(err).Error("failed to aggregate daily stats")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "stats": stats})
	}
}

type settingsStore interface {
	Get(ctx context.Context) (*model.RiskSettings, error)
	Update(ctx context.Context, settings *model.RiskSettings) error
	SetBotEnabled(ctx context.Context, settingsID uint, enabled bool) error
}

// GetSettingsHandler returns the current risk limits.
func GetSettingsHandler(store settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.Get(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load settings")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": settings})
	}
}

// UpdateSettingsHandler overwrites the risk limits with the posted values.
func UpdateSettingsHandler(store settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := store.Get(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load settings")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		updated := *current
		if err := json.NewDecoder(r.Body).Decode(&updated); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		updated.ID = current.ID

		if updated.MaxLeverage <= 0 || updated.MaxDailyTrades <= 0 || updated.MaxOpenPositions <= 0 {
			writeError(w, http.StatusBadRequest, "limits must be positive")
			return
		}
		if !updated.MaxPositionValueUSD.IsPositive() || !updated.MaxTotalExposurePct.IsPositive() {
			writeError(w, http.StatusBadRequest, "limits must be positive")
			return
		}

		if err := store.Update(r.Context(), &updated); err != nil {
			logger.WithError(err).Error("failed to update settings")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "settings": updated})
	}
}

// BotToggleHandler flips the master trading switch.
func BotToggleHandler(store settingsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		settings, err := store.Get(r.Context())
		if err != nil {
			logger.WithError(err).Error("failed to load settings")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if err := store.SetBotEnabled(r.Context(), settings.ID, body.Enabled); err != nil {
			logger.WithError(err).Error("failed to toggle bot")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "bot_enabled": body.Enabled})
	}
}

type activityLister interface {
	ListRecent(ctx context.Context, category string, limit int) ([]model.ActivityLog, error)
}

// ActivityHandler returns the rolling event feed.
func ActivityHandler(repo activityLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if limitParam := r.URL.Query().Get("limit"); limitParam != "" {
			parsed, err := strconv.Atoi(limitParam)
			if err != nil || parsed <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = parsed
		}

		entries, err := repo.ListRecent(r.Context(), r.URL.Query().Get("category"), limit)
		if err != nil {
			logger.WithError(err).Error("failed to list activity")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "activity": entries})
	}
}

// StatusHandler reports process health plus the bot switch, for dashboards.
func StatusHandler(store settingsStore, viewer accountViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out := map[string]interface{}{"success": true, "status": "ok"}
		if settings, err := store.Get(r.Context()); err == nil {
			out["bot_enabled"] = settings.BotEnabled
		}
		if snap, err := viewer.Snapshot(r.Context()); err == nil {
			out["open_positions"] = snap.OpenCount()
			out["equity"] = snap.Equity
		} else {
			out["exchange"] = "unreachable"
		}
		writeJSON(w, http.StatusOK, out)
	}
}
