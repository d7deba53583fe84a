package gateway

// Test index:
// 1. TestIsRetryableResp verifies read-path retry decisions per status code.
// 2. TestClassifyOrderError maps venue rejection strings onto the taxonomy.
// 3. TestAccountStateNormalization decodes a clearinghouse payload into a snapshot.
// 4. TestPlaceOrderFilled decodes an immediately filled ack.
// 5. TestPlaceOrderResting decodes a resting ack.
// 6. TestPlaceOrderRejected surfaces classified rejections.
// 7. TestPlaceOrderRateLimited maps HTTP 429 onto ErrRateLimited.
// 8. TestMids decodes the all-mids map.

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalbridge/src/model"
)

func newTestGatewayClient(baseURL string) *Client {
	return &Client{
		address:  "0xabc",
		agentKey: "test-secret",
		baseURL:  baseURL,
		slippage: decimal.NewFromFloat(0.01),
		info:     resty.New().SetBaseURL(baseURL).SetTimeout(5 * time.Second),
		exch:     resty.New().SetBaseURL(baseURL).SetTimeout(5 * time.Second),
	}
}

func TestIsRetryableResp(t *testing.T) {
	assert.True(t, isRetryableResp(nil, errors.New("boom")))
	assert.False(t, isRetryableResp(nil, nil))
}

func TestClassifyOrderError(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"Rate limit exceeded", ErrRateLimited},
		{"Insufficient margin to place order", ErrInsufficientMargin},
		{"Order price cannot be more than 95% away", ErrInvalidPrice},
		{"Invalid px for trigger", ErrInvalidPrice},
		{"something else entirely", ErrOrderRejected},
	}

	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.ErrorIs(t, classifyOrderError(tc.msg), tc.want)
		})
	}
}

func TestAccountStateNormalization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"marginSummary": {
				"accountValue": "10000.5",
				"totalNtlPos": "2500",
				"totalMarginUsed": "250",
				"withdrawable": "9750.5"
			},
			"assetPositions": [
				{"type": "oneWay", "position": {
					"coin": "BTC",
					"szi": "0.05",
					"entryPx": "50000",
					"positionValue": "2500",
					"unrealizedPnl": "12.5",
					"liquidationPx": "45000",
					"marginUsed": "250",
					"leverage": {"type": "isolated", "value": 10}
				}},
				{"type": "oneWay", "position": {
					"coin": "ETH",
					"szi": "0",
					"entryPx": "0",
					"positionValue": "0",
					"unrealizedPnl": "0",
					"liquidationPx": "0",
					"marginUsed": "0",
					"leverage": {"type": "cross", "value": 1}
				}}
			]
		}`))
	}))
	defer srv.Close()

	client := newTestGatewayClient(srv.URL)
	snap, err := client.AccountState(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, snap.Equity.Equal(decimal.RequireFromString("10000.5")))
	assert.True(t, snap.Withdrawable.Equal(decimal.RequireFromString("9750.5")))

	// Zero-size rows are dropped at the boundary.
	require.Len(t, snap.Positions, 1)
	pos := snap.Positions[0]
	assert.Equal(t, "BTC", pos.Coin)
	assert.Equal(t, model.SideLong, pos.Side())
	assert.Equal(t, 10, pos.Leverage)
	assert.True(t, pos.MarkPrice.Equal(decimal.NewFromInt(50000)))
}

func TestPlaceOrderFilled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/exchange", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"filled":{"oid":77,"totalSz":"0.02","avgPx":"50011.5"}}]}}}`))
	}))
	defer srv.Close()

	client := newTestGatewayClient(srv.URL)
	ack, err := client.PlaceOrder(context.Background(), OrderRequest{
		Coin:  "BTC",
		IsBuy: true,
		Size:  decimal.RequireFromString("0.02"),
		Type:  model.OrderTypeMarket,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(77), ack.OID)
	assert.True(t, ack.Filled)
	assert.True(t, ack.AvgPrice.Equal(decimal.RequireFromString("50011.5")))
}

func TestPlaceOrderResting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"resting":{"oid":42}}]}}}`))
	}))
	defer srv.Close()

	client := newTestGatewayClient(srv.URL)
	ack, err := client.PlaceOrder(context.Background(), OrderRequest{
		Coin:  "ETH",
		IsBuy: false,
		Size:  decimal.NewFromInt(1),
		Type:  model.OrderTypeLimit,
		Price: decimal.NewFromInt(3000),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), ack.OID)
	assert.False(t, ack.Filled)
}

func TestPlaceOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","response":{"type":"order","data":{"statuses":[{"error":"Insufficient margin to place order"}]}}}`))
	}))
	defer srv.Close()

	client := newTestGatewayClient(srv.URL)
	_, err := client.PlaceOrder(context.Background(), OrderRequest{
		Coin:  "BTC",
		IsBuy: true,
		Size:  decimal.NewFromInt(1),
		Type:  model.OrderTypeMarket,
	})
	assert.ErrorIs(t, err, ErrInsufficientMargin)
	assert.False(t, IsTransient(err))
}

func TestPlaceOrderRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestGatewayClient(srv.URL)
	_, err := client.PlaceOrder(context.Background(), OrderRequest{
		Coin:  "BTC",
		IsBuy: true,
		Size:  decimal.NewFromInt(1),
		Type:  model.OrderTypeMarket,
	})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsTransient(err))
}

func TestMids(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"BTC":"64250.5","ETH":"3310"}`))
	}))
	defer srv.Close()

	client := newTestGatewayClient(srv.URL)
	mids, err := client.Mids(context.Background())
	require.NoError(t, err)

	assert.True(t, mids["BTC"].Equal(decimal.RequireFromString("64250.5")))
	assert.True(t, mids["ETH"].Equal(decimal.NewFromInt(3310)))
}
