// REST API client for the derivatives venue.
// RESTY ONLY + INTERNAL RETRY ON READS; order submission retries belong to
// the execution coordinator.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"signalbridge/src/model"
)

const (
	// Read-path retry configuration (info endpoints only).
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

func isRetryableResp(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

// Client talks to the venue's info and exchange endpoints. The info client
// retries internally on transient status codes; the exchange client never
// retries, so the coordinator keeps at-most-once submission semantics.
type Client struct {
	address  string
	agentKey string
	baseURL  string
	slippage decimal.Decimal

	info *resty.Client
	exch *resty.Client
}

func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.testnet.perps.exchange"
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}

	infoClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.CallTimeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	exchClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.CallTimeout)

	return &Client{
		address:  cfg.MainWallet,
		agentKey: cfg.AgentKey,
		baseURL:  baseURL,
		slippage: decimal.NewFromFloat(cfg.DefaultSlippagePct).Div(decimal.NewFromInt(100)),
		info:     infoClient,
		exch:     exchClient,
	}
}

func signRequest(body string, nonce int64, secret string) string {
	base := fmt.Sprintf("%s%d", body, nonce)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(base))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) postInfo(ctx context.Context, payload map[string]interface{}, out interface{}) error {
	resp, err := c.info.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/info")
	if err != nil {
		return err
	}

	if resp.StatusCode() == 429 {
		return ErrRateLimited
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return json.Unmarshal(resp.Body(), out)
}

func (c *Client) postExchange(ctx context.Context, action map[string]interface{}) (*exchangeResponse, error) {
	nonce := time.Now().UnixMilli()

	body, err := json.Marshal(action)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"action":    json.RawMessage(body),
		"nonce":     nonce,
		"signature": signRequest(string(body), nonce, c.agentKey),
		"user":      c.address,
	}

	resp, err := c.exch.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post("/exchange")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() == 429 {
		return nil, ErrRateLimited
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	// The venue returns a typed response on success and a bare string under
	// "response" on rejection, so decode in two phases.
	var envelope struct {
		Status   string          `json:"status"`
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, err
	}

	if envelope.Status != "ok" {
		var msg string
		if json.Unmarshal(envelope.Response, &msg) != nil {
			msg = string(envelope.Response)
		}
		return nil, fmt.Errorf("%w: %s", classifyOrderError(msg), msg)
	}

	var parsed exchangeResponse
	parsed.Status = envelope.Status
	if err := json.Unmarshal(envelope.Response, &parsed.Response); err != nil {
		return nil, err
	}

	return &parsed, nil
}

// -----------------------------
// ACCOUNT & MARKET DATA
// -----------------------------

func (c *Client) AccountState(ctx context.Context, address string) (*model.AccountSnapshot, error) {
	if address == "" {
		address = c.address
	}

	var state clearinghouseState
	err := c.postInfo(ctx, map[string]interface{}{
		"type": "clearinghouseState",
		"user": address,
	}, &state)
	if err != nil {
		return nil, fmt.Errorf("account state: %w", err)
	}

	snap := state.normalize(address)
	snap.Taken = time.Now().UTC()
	return snap, nil
}

// Mids returns the current mid price per coin.
func (c *Client) Mids(ctx context.Context) (map[string]decimal.Decimal, error) {
	var raw map[string]string
	if err := c.postInfo(ctx, map[string]interface{}{"type": "allMids"}, &raw); err != nil {
		return nil, fmt.Errorf("all mids: %w", err)
	}

	mids := make(map[string]decimal.Decimal, len(raw))
	for coin, px := range raw {
		mids[coin] = parseDecimal(px)
	}
	return mids, nil
}

// AssetMeta returns venue metadata (size decimals, max leverage) per coin.
func (c *Client) AssetMeta(ctx context.Context) (map[string]AssetMeta, error) {
	var meta metaResponse
	if err := c.postInfo(ctx, map[string]interface{}{"type": "meta"}, &meta); err != nil {
		return nil, fmt.Errorf("asset meta: %w", err)
	}

	out := make(map[string]AssetMeta, len(meta.Universe))
	for _, a := range meta.Universe {
		out[a.Name] = AssetMeta{
			Coin:         a.Name,
			SizeDecimals: a.SzDecimals,
			MaxLeverage:  a.MaxLeverage,
			OnlyIsolated: a.OnlyIsolated,
		}
	}
	return out, nil
}

// OpenOrders returns the account's resting orders.
func (c *Client) OpenOrders(ctx context.Context, address string) ([]OpenOrder, error) {
	if address == "" {
		address = c.address
	}

	var raw []wireOpenOrder
	err := c.postInfo(ctx, map[string]interface{}{
		"type": "openOrders",
		"user": address,
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}

	out := make([]OpenOrder, 0, len(raw))
	for _, o := range raw {
		out = append(out, OpenOrder{
			Coin:   o.Coin,
			OID:    o.Oid,
			IsBuy:  o.Side == "B",
			Price:  parseDecimal(o.LimitPx),
			Size:   parseDecimal(o.Sz),
			Placed: time.UnixMilli(o.Timestamp).UTC(),
		})
	}
	return out, nil
}

// -----------------------------
// TRADING
// -----------------------------

func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderAck, error) {
	order := map[string]interface{}{
		"coin":       req.Coin,
		"is_buy":     req.IsBuy,
		"sz":         req.Size.String(),
		"reduceOnly": req.ReduceOnly,
		"cloid":      req.ClientOID,
	}

	switch req.Type {
	case model.OrderTypeLimit:
		order["limit_px"] = req.Price.String()
		order["order_type"] = map[string]interface{}{"limit": map[string]string{"tif": "Gtc"}}
	case model.OrderTypeTrigger:
		order["limit_px"] = req.Price.String()
		order["order_type"] = map[string]interface{}{
			"trigger": map[string]interface{}{
				"triggerPx": req.Price.String(),
				"isMarket":  true,
				"tpsl":      req.TPSL,
			},
		}
	default:
		// Market orders go out as aggressive IOC limits bounded by the
		// configured slippage; price bound is resolved venue-side when
		// limit_px is omitted.
		order["order_type"] = map[string]interface{}{"limit": map[string]string{"tif": "Ioc"}}
		order["slippage"] = c.slippage.String()
	}

	resp, err := c.postExchange(ctx, map[string]interface{}{
		"type":   "order",
		"orders": []interface{}{order},
	})
	if err != nil {
		return nil, err
	}

	statuses := resp.Response.Data.Statuses
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: empty status list", ErrOrderRejected)
	}

	st := statuses[0]
	switch {
	case st.Error != "":
		return nil, fmt.Errorf("%w: %s", classifyOrderError(st.Error), st.Error)
	case st.Filled != nil:
		return &OrderAck{
			OID:        st.Filled.Oid,
			Filled:     true,
			FilledSize: parseDecimal(st.Filled.TotalSz),
			AvgPrice:   parseDecimal(st.Filled.AvgPx),
		}, nil
	case st.Resting != nil:
		return &OrderAck{OID: st.Resting.Oid}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized order status", ErrOrderRejected)
	}
}

func (c *Client) CancelOrder(ctx context.Context, coin string, oid int64) error {
	_, err := c.postExchange(ctx, map[string]interface{}{
		"type": "cancel",
		"cancels": []interface{}{
			map[string]interface{}{"coin": coin, "oid": oid},
		},
	})
	return err
}

func (c *Client) ModifyOrder(ctx context.Context, coin string, oid int64, newPrice, newSize decimal.Decimal) error {
	modify := map[string]interface{}{
		"coin":     coin,
		"oid":      oid,
		"limit_px": newPrice.String(),
	}
	if !newSize.IsZero() {
		modify["sz"] = newSize.String()
	}

	_, err := c.postExchange(ctx, map[string]interface{}{
		"type":     "modify",
		"modifies": []interface{}{modify},
	})
	return err
}

func (c *Client) UpdateLeverage(ctx context.Context, coin string, leverage int, isCross bool) error {
	_, err := c.postExchange(ctx, map[string]interface{}{
		"type":     "updateLeverage",
		"coin":     coin,
		"leverage": leverage,
		"isCross":  isCross,
	})
	return err
}
