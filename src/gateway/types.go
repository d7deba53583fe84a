package gateway

import (
	"time"

	"github.com/shopspring/decimal"

	"signalbridge/src/model"
)

// -----------------------------
// WIRE PAYLOADS (venue JSON)
// -----------------------------
// The venue reports every number as a string; normalization into decimals
// happens here at the boundary and nowhere else.

type marginSummary struct {
	AccountValue   string `json:"accountValue"`
	TotalNtlPos    string `json:"totalNtlPos"`
	TotalMarginUsed string `json:"totalMarginUsed"`
	Withdrawable   string `json:"withdrawable"`
}

type wirePosition struct {
	Position struct {
		Coin     string `json:"coin"`
		Dex      string `json:"dex,omitempty"`
		Szi      string `json:"szi"`
		EntryPx  string `json:"entryPx"`
		PositionValue string `json:"positionValue"`
		UnrealizedPnl string `json:"unrealizedPnl"`
		LiquidationPx string `json:"liquidationPx"`
		MarginUsed    string `json:"marginUsed"`
		Leverage struct {
			Type  string `json:"type"`
			Value int    `json:"value"`
		} `json:"leverage"`
	} `json:"position"`
	Type string `json:"type"`
}

type clearinghouseState struct {
	MarginSummary  marginSummary  `json:"marginSummary"`
	AssetPositions []wirePosition `json:"assetPositions"`
}

type assetInfo struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
	OnlyIsolated bool  `json:"onlyIsolated,omitempty"`
}

type metaResponse struct {
	Universe []assetInfo `json:"universe"`
}

type wireOpenOrder struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	Oid       int64  `json:"oid"`
	Side      string `json:"side"` // "B" bid, "A" ask
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
}

type orderStatus struct {
	Resting *struct {
		Oid int64 `json:"oid"`
	} `json:"resting,omitempty"`
	Filled *struct {
		Oid     int64  `json:"oid"`
		TotalSz string `json:"totalSz"`
		AvgPx   string `json:"avgPx"`
	} `json:"filled,omitempty"`
	Error string `json:"error,omitempty"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatus `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// -----------------------------
// NORMALIZED TYPES
// -----------------------------

// AssetMeta is per-coin venue metadata consumed by the planner and risk
// engine.
type AssetMeta struct {
	Coin         string
	SizeDecimals int32
	MaxLeverage  int
	OnlyIsolated bool
}

// OrderRequest is one leg ready for submission.
type OrderRequest struct {
	Coin       string
	IsBuy      bool
	Size       decimal.Decimal
	Type       model.OrderType
	// Price is the limit price for limit orders and the trigger price for
	// trigger orders; ignored for market orders.
	Price      decimal.Decimal
	ReduceOnly bool
	// TPSL is "sl" or "tp" for protective trigger orders.
	TPSL      string
	ClientOID string
}

// OrderAck is the venue's acknowledgement of a placed order.
type OrderAck struct {
	OID        int64
	Filled     bool
	FilledSize decimal.Decimal
	AvgPrice   decimal.Decimal
}

// OpenOrder is one resting order on the venue's book.
type OpenOrder struct {
	Coin   string          `json:"coin"`
	OID    int64           `json:"oid"`
	IsBuy  bool            `json:"is_buy"`
	Price  decimal.Decimal `json:"price"`
	Size   decimal.Decimal `json:"size"`
	Placed time.Time       `json:"placed"`
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (c clearinghouseState) normalize(address string) *model.AccountSnapshot {
	snap := &model.AccountSnapshot{
		Address:      address,
		Equity:       parseDecimal(c.MarginSummary.AccountValue),
		Withdrawable: parseDecimal(c.MarginSummary.Withdrawable),
		MarginUsed:   parseDecimal(c.MarginSummary.TotalMarginUsed),
	}

	for _, wp := range c.AssetPositions {
		p := wp.Position
		size := parseDecimal(p.Szi)
		if size.IsZero() {
			continue
		}

		pos := model.Position{
			Coin:             p.Coin,
			Dex:              p.Dex,
			Size:             size,
			EntryPrice:       parseDecimal(p.EntryPx),
			LiquidationPrice: parseDecimal(p.LiquidationPx),
			MarginUsed:       parseDecimal(p.MarginUsed),
			UnrealizedPnL:    parseDecimal(p.UnrealizedPnl),
			Leverage:         p.Leverage.Value,
		}

		// positionValue is notional at mark; back out the mark price.
		if notional := parseDecimal(p.PositionValue); !notional.IsZero() {
			pos.MarkPrice = notional.Div(size.Abs())
		}

		snap.Positions = append(snap.Positions, pos)
	}

	return snap
}
