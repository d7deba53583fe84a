package risk

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
)

// ----- rejection reasons -----

type Reason string

const (
	ReasonCircuitBreakerActive    Reason = "CircuitBreakerActive"
	ReasonDailyTradeLimitExceeded Reason = "DailyTradeLimitExceeded"
	ReasonDailyLossLimitExceeded  Reason = "DailyLossLimitExceeded"
	ReasonLeverageExceeded        Reason = "LeverageExceeded"
	ReasonTooManyOpenPositions    Reason = "TooManyOpenPositions"
	ReasonPositionTooLarge        Reason = "PositionTooLarge"
	ReasonExposureLimitExceeded   Reason = "ExposureLimitExceeded"
	ReasonTradingDisabled         Reason = "TradingDisabled"
)

// Decision is the outcome of one evaluation. Message is safe to surface
// verbatim to the caller.
type Decision struct {
	Allowed bool
	Reason  Reason
	Message string
}

func accept() Decision {
	return Decision{Allowed: true}
}

func reject(reason Reason, format string, args ...interface{}) Decision {
	return Decision{Allowed: false, Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Input bundles everything one evaluation reads. All state is injected so
// tests can fabricate it; Evaluate itself has no side effects.
type Input struct {
	Intent   *model.TradeIntent
	Limits   *model.RiskSettings
	CoinCfg  *model.CoinConfig // nil when the coin has no per-coin row yet
	State    *model.RiskState
	Snapshot *model.AccountSnapshot

	// VenueMaxLeverage is the exchange-reported cap for the coin; 0 = unknown.
	VenueMaxLeverage int

	Now time.Time
}

var oneHundred = decimal.NewFromInt(100)

// Evaluate runs the risk checks in a fixed order and short-circuits on the
// first failure, so the returned reason is deterministic. Close-only intents
// skip everything except the circuit-breaker pause: de-risking must always
// stay possible.
func Evaluate(in Input) Decision {
	intent := in.Intent
	limits := in.Limits
	state := in.State

	// 1. Global pause.
	if state.PausedAt(in.Now) {
		remaining := state.TradingPausedUntil.Sub(in.Now).Round(time.Minute)
		return reject(ReasonCircuitBreakerActive,
			"trading paused for %s after consecutive losses", remaining)
	}

	if intent.ClosePosition {
		return accept()
	}

	// 2. Daily trade count.
	if state.DailyTradeCount >= limits.MaxDailyTrades {
		return reject(ReasonDailyTradeLimitExceeded,
			"max daily trades (%d) reached", limits.MaxDailyTrades)
	}

	// 3. Daily loss.
	if state.DailyRealizedPnL.LessThanOrEqual(limits.MaxDailyLossUSD.Neg()) {
		return reject(ReasonDailyLossLimitExceeded,
			"daily loss limit $%s reached", limits.MaxDailyLossUSD.StringFixed(2))
	}

	// 4. Leverage: min of the global cap, the per-coin override and the
	// exchange-reported cap. Overrides narrow, never widen.
	maxLev := EffectiveMaxLeverage(limits, in.CoinCfg, in.VenueMaxLeverage)
	if intent.Leverage > maxLev {
		return reject(ReasonLeverageExceeded,
			"leverage %dx exceeds maximum %dx for %s", intent.Leverage, maxLev, intent.Coin)
	}

	// 5. Position count. Adding to an existing position is exempt; HIP-3
	// positions count like native ones because the snapshot is the single
	// source of truth.
	if in.Snapshot.FindPosition(intent.Coin) == nil &&
		in.Snapshot.OpenCount() >= limits.MaxOpenPositions {
		return reject(ReasonTooManyOpenPositions,
			"max open positions (%d) reached", limits.MaxOpenPositions)
	}

	// 6. Position value.
	notional := intent.Notional()
	maxValue := limits.MaxPositionValueUSD
	if in.CoinCfg != nil && in.CoinCfg.MaxPositionValueUSD != nil &&
		in.CoinCfg.MaxPositionValueUSD.LessThan(maxValue) {
		maxValue = *in.CoinCfg.MaxPositionValueUSD
	}
	if notional.GreaterThan(maxValue) {
		return reject(ReasonPositionTooLarge,
			"position value $%s exceeds limit $%s", notional.StringFixed(2), maxValue.StringFixed(2))
	}

	// 7. Total exposure as a share of equity. Compared multiplicatively so
	// the boundary case (exactly at the cap) stays exact. An account without
	// positive equity cannot support any new exposure.
	if !in.Snapshot.Equity.IsPositive() {
		if notional.IsPositive() {
			return reject(ReasonExposureLimitExceeded,
				"account equity $%s cannot support new exposure", in.Snapshot.Equity.StringFixed(2))
		}
	} else {
		newExposure := in.Snapshot.TotalNotional().Add(notional)
		cap := in.Snapshot.Equity.Mul(limits.MaxTotalExposurePct).Div(oneHundred)
		if newExposure.GreaterThan(cap) {
			return reject(ReasonExposureLimitExceeded,
				"total exposure $%s would exceed %s%% of equity", newExposure.StringFixed(2), limits.MaxTotalExposurePct.String())
		}
	}

	// 8. Enable switches.
	if !limits.BotEnabled {
		return reject(ReasonTradingDisabled, "bot is disabled")
	}
	if in.CoinCfg != nil && !in.CoinCfg.Enabled {
		return reject(ReasonTradingDisabled, "trading disabled for %s", intent.Coin)
	}

	return accept()
}

// EffectiveMaxLeverage resolves the leverage cap precedence: the minimum of
// all applicable caps.
func EffectiveMaxLeverage(limits *model.RiskSettings, coinCfg *model.CoinConfig, venueMax int) int {
	maxLev := limits.MaxLeverage
	if coinCfg != nil && coinCfg.MaxLeverage != nil && *coinCfg.MaxLeverage < maxLev {
		maxLev = *coinCfg.MaxLeverage
	}
	if venueMax > 0 && venueMax < maxLev {
		maxLev = venueMax
	}
	return maxLev
}
