package execution

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/ledger"
	"tradingcore/src/model"
	"tradingcore/src/traderr"
)

const (
	liveRetryAttempts   = 5
	liveRetryBaseDelay  = 500 * time.Millisecond
	liveRetryMaxBackoff = 8 * time.Second
)

// liveOrderRequest is the wire shape sent to the exchange order endpoint.
type liveOrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	OrderType  string  `json:"orderType"`
	Quantity   string  `json:"quantity"`
	LimitPrice *string `json:"limitPrice,omitempty"`
	ClientID   string  `json:"clientId"`
}

// liveOrderResponse is the exchange execution report. Numeric fields come
// back as strings.
type liveOrderResponse struct {
	OrderID     string `json:"orderId"`
	Status      string `json:"status"`
	FilledQty   string `json:"filledQty"`
	FilledPrice string `json:"filledPrice"`
	Fee         string `json:"fee"`
	FeeCurrency string `json:"feeCurrency"`
	ExecutedAt  int64  `json:"executedAt"`
	Error       string `json:"error,omitempty"`
}

// LiveAdapter submits orders to a real exchange over its REST API.
// Requests are signed with HMAC-SHA256 over timestamp + body.
type LiveAdapter struct {
	apiKey    string
	apiSecret string
	http      *resty.Client
}

// NewLiveAdapter builds an adapter against cfg.BaseURL using the given
// decrypted credentials.
func NewLiveAdapter(cfg Config, apiKey, apiSecret string) *LiveAdapter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.APITimeout).
		SetRetryCount(liveRetryAttempts - 1).
		SetRetryWaitTime(liveRetryBaseDelay).
		SetRetryMaxWaitTime(liveRetryMaxBackoff).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil || resp == nil {
				return true
			}
			return resp.StatusCode() == 429 || resp.StatusCode() >= 500
		})

	return &LiveAdapter{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      httpClient,
	}
}

func (a *LiveAdapter) sign(timestamp, body string) string {
	mac := hmac.New(sha256.New, []byte(a.apiSecret))
	mac.Write([]byte(timestamp + body))
	return hex.EncodeToString(mac.Sum(nil))
}

// Execute submits the remaining quantity of the order and maps the
// execution report onto a fill.
func (a *LiveAdapter) Execute(
	ctx context.Context,
	order *model.Order,
	refPrice decimal.Decimal,
) (*ledger.Fill, error) {

	symbol := ""
	if order.Asset != nil {
		symbol = order.Asset.Symbol
	}
	if symbol == "" {
		return nil, traderr.ExecutionFailed(nil, "order %d has no resolved asset symbol", order.ID)
	}

	payload := liveOrderRequest{
		Symbol:    symbol,
		Side:      order.Side,
		OrderType: order.OrderType,
		Quantity:  order.RemainingQuantity().String(),
		ClientID:  fmt.Sprintf("tc-%d-%d", order.ID, time.Now().UnixNano()),
	}
	if order.OrderType == model.OrderTypeLimit && order.Price != nil {
		p := order.Price.String()
		payload.LimitPrice = &p
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req := a.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetHeader("APIKey", a.apiKey).
		SetHeader("Timestamp", timestamp).
		SetHeader("Signature", a.sign(timestamp, string(body))).
		SetBody(body)

	var out liveOrderResponse
	resp, err := req.SetResult(&out).Post("/v1/orders")
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"adapter":  "live",
			"order_id": order.ID,
		}).WithError(err).Error("Exchange order submission failed")

		return nil, traderr.ExecutionFailed(err, "exchange submission for order %d failed", order.ID)
	}

	if resp.StatusCode() != 200 || out.Error != "" {
		return nil, traderr.ExecutionFailed(
			fmt.Errorf("HTTP %d: %s %s", resp.StatusCode(), out.Error, resp.String()),
			"exchange rejected order %d", order.ID)
	}

	quantity, err := decimal.NewFromString(out.FilledQty)
	if err != nil {
		return nil, traderr.ExecutionFailed(err, "unparseable filled quantity %q", out.FilledQty)
	}
	price, err := decimal.NewFromString(out.FilledPrice)
	if err != nil {
		return nil, traderr.ExecutionFailed(err, "unparseable filled price %q", out.FilledPrice)
	}
	fee, err := decimal.NewFromString(out.Fee)
	if err != nil {
		return nil, traderr.ExecutionFailed(err, "unparseable fee %q", out.Fee)
	}

	executedAt := time.Now().UTC()
	if out.ExecutedAt > 0 {
		executedAt = time.UnixMilli(out.ExecutedAt).UTC()
	}

	return &ledger.Fill{
		Quantity:        quantity,
		Price:           price,
		Fee:             fee,
		FeeCurrency:     out.FeeCurrency,
		ExternalOrderID: out.OrderID,
		ExecutedAt:      executedAt,
	}, nil
}
