package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/controller"
	"signalbridge/src/executor"
	"signalbridge/src/model"
	"signalbridge/src/planner"
	"signalbridge/src/risk"
)

// WebhookPayload is the signal body posted by TradingView alerts. Numeric
// fields accept both JSON numbers and strings.
type WebhookPayload struct {
	Secret string `json:"secret"`

	Ticker   string `json:"ticker"`
	Action   string `json:"action"` // buy, sell, long, short, close
	Category string `json:"category,omitempty"`

	Leverage      int              `json:"leverage,omitempty"`
	CollateralUSD decimal.Decimal  `json:"collateral_usd,omitempty"`
	StopLossPct   *decimal.Decimal `json:"stop_loss_pct,omitempty"`
	TakeProfitPct *decimal.Decimal `json:"take_profit_pct,omitempty"`

	OrderType  string           `json:"order_type,omitempty"` // market, limit, twap, scale
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`

	DurationMinutes int  `json:"duration_minutes,omitempty"`
	NumSlices       int  `json:"num_slices,omitempty"`
	Randomize       bool `json:"randomize,omitempty"`

	PriceFrom *decimal.Decimal `json:"price_from,omitempty"`
	PriceTo   *decimal.Decimal `json:"price_to,omitempty"`
	NumOrders int              `json:"num_orders,omitempty"`
	Skew      *decimal.Decimal `json:"skew,omitempty"`

	SignalID  string `json:"signal_id,omitempty"`
	Indicator string `json:"indicator,omitempty"`
}

type signalRunner interface {
	ExecuteIntent(ctx context.Context, intent *model.TradeIntent) (*model.ExecutionResult, risk.Decision, error)
	ExecuteCategory(ctx context.Context, category string, template *model.TradeIntent) ([]executor.BatchResult, error)
	ClosePosition(ctx context.Context, coin string, source model.IntentSource) (*model.ExecutionResult, error)
}

// WebhookHandler accepts TradingView signals. Requests with a wrong secret
// are rejected before the body is acted on.
func WebhookHandler(cfg Config, runner signalRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload WebhookPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}

		if !secretMatches(cfg.WebhookSecret, payload.Secret) {
			logger.WithField("remote", r.RemoteAddr).Warn("Webhook rejected, bad secret")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		intent, err := intentFromPayload(&payload, model.SourceWebhook)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if payload.Category != "" && !intent.ClosePosition {
			results, err := runner.ExecuteCategory(r.Context(), payload.Category, intent)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, err.Error())
				return
			}
			writeBatch(w, results)
			return
		}

		if intent.ClosePosition {
			res, err := runner.ClosePosition(r.Context(), intent.Coin, model.SourceWebhook)
			if err != nil {
				if errors.Is(err, controller.ErrNoPosition) {
					writeError(w, http.StatusNotFound, err.Error())
					return
				}
				logger.WithError(err).Error("Webhook close failed")
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			writeResult(w, res)
			return
		}

		res, decision, err := runner.ExecuteIntent(r.Context(), intent)
		if err != nil {
			if errors.Is(err, planner.ErrInvalidPlan) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			logger.WithError(err).Error("Webhook execution failed")
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

func secretMatches(expected, got string) bool {
	if expected == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// intentFromPayload validates the payload and maps it onto a trade intent.
// Fields left empty here are later filled from the coin config.
func intentFromPayload(p *WebhookPayload, source model.IntentSource) (*model.TradeIntent, error) {
	coin := controller.NormalizeCoin(p.Ticker)
	if coin == "" && p.Category == "" {
		return nil, errors.New("ticker is required")
	}

	intent := &model.TradeIntent{
		Coin:           coin,
		Leverage:       p.Leverage,
		CollateralUSD:  p.CollateralUSD,
		StopLossPct:    p.StopLossPct,
		Source:         source,
		IdempotencyKey: p.SignalID,
		Indicator:      p.Indicator,
	}

	if p.Action == "close" || p.Action == "close_position" {
		intent.ClosePosition = true
		intent.ReduceOnly = true
		intent.Style = model.StyleMarket
		return intent, nil
	}

	isLong, ok := controller.NormalizeSide(p.Action)
	if !ok {
		return nil, fmt.Errorf("unknown action %q", p.Action)
	}
	if isLong {
		intent.Side = model.SideLong
	} else {
		intent.Side = model.SideShort
	}

	if p.TakeProfitPct != nil {
		intent.TakeProfits = []model.TakeProfitTarget{
			{TriggerPct: *p.TakeProfitPct, CloseFraction: decimal.NewFromInt(1)},
		}
	}

	switch p.OrderType {
	case "", "market":
		intent.Style = model.StyleMarket
	case "limit":
		if p.LimitPrice == nil {
			return nil, errors.New("limit_price is required for limit orders")
		}
		intent.Style = model.StyleLimit
		intent.Limit = &model.LimitParams{Price: *p.LimitPrice}
	case "twap":
		if p.DurationMinutes <= 0 {
			return nil, errors.New("duration_minutes is required for twap orders")
		}
		intent.Style = model.StyleTWAP
		intent.TWAP = &model.TWAPParams{
			Duration:  time.Duration(p.DurationMinutes) * time.Minute,
			Slices:    p.NumSlices,
			Randomize: p.Randomize,
		}
	case "scale":
		if p.PriceFrom == nil || p.PriceTo == nil {
			return nil, errors.New("price_from and price_to are required for scale orders")
		}
		skew := decimal.NewFromInt(1)
		if p.Skew != nil {
			skew = *p.Skew
		}
		intent.Style = model.StyleScale
		intent.Scale = &model.ScaleParams{
			PriceFrom: *p.PriceFrom,
			PriceTo:   *p.PriceTo,
			NumOrders: p.NumOrders,
			Skew:      skew,
		}
	default:
		return nil, fmt.Errorf("unknown order_type %q", p.OrderType)
	}

	return intent, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// Every response carries a success flag. Failures use writeError, risk
// rejections writeRejection, execution outcomes writeResult; data endpoints
// inline `"success": true` next to their payload key.

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

// writeRejection reports a risk rejection. The status stays 200: the request
// was handled, the trade was refused.
func writeRejection(w http.ResponseWriter, d risk.Decision) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": false,
		"reason":  d.Reason,
		"error":   d.Message,
	})
}

// writeResult wraps an execution result. A duplicate delivery counts as
// success so signal providers do not retry it; the flag keeps it
// distinguishable.
func writeResult(w http.ResponseWriter, res *model.ExecutionResult) {
	body := map[string]interface{}{
		"success":   res.Ok() || res.Duplicate,
		"duplicate": res.Duplicate,
		"result":    res,
	}
	if !res.Ok() && !res.Duplicate {
		if msg := res.FirstError(); msg != "" {
			body["error"] = msg
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// writeBatch reports per-coin outcomes of a category batch.
func writeBatch(w http.ResponseWriter, results []executor.BatchResult) {
	items := make([]map[string]interface{}, 0, len(results))
	for _, br := range results {
		ok := br.Err == nil && br.Result != nil && (br.Result.Ok() || br.Result.Duplicate)
		item := map[string]interface{}{
			"coin":    br.Coin,
			"success": ok,
			"result":  br.Result,
		}
		if br.Err != nil {
			item["error"] = br.Err.Error()
		}
		items = append(items, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "batch": items})
}
