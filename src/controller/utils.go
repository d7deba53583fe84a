package controller

import (
	"strings"
)

// NormalizeCoin maps incoming webhook symbols onto the exchange's coin names.
// Examples:
//
//	BTCUSDT -> BTC
//	ethusd  -> ETH
//	SOLPERP -> SOL
//	BTC     -> BTC
func NormalizeCoin(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return s
	}

	for _, suffix := range []string{"USDT", "USDC", "USD", "PERP"} {
		if strings.HasSuffix(s, suffix) && len(s) > len(suffix) {
			return strings.TrimSuffix(s, suffix)
		}
	}
	return s
}

// NormalizeSide maps webhook action strings onto a long/short flag.
// Returns false for anything unrecognized.
func NormalizeSide(action string) (isLong bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "buy", "long":
		return true, true
	case "sell", "short":
		return false, true
	}
	return false, false
}
