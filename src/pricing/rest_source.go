package pricing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"tradingcore/src/traderr"
)

// quoteResponse is the wire shape returned by the quote endpoint.
// Prices arrive as strings to avoid float truncation.
type quoteResponse struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Currency  string `json:"currency,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// RestSource fetches spot prices over HTTP. Transient failures are retried
// with backoff inside the client.
type RestSource struct {
	http *resty.Client
}

// NewRestSource builds a source against cfg.RestBaseURL.
func NewRestSource(cfg Config) *RestSource {
	baseURL := strings.TrimRight(cfg.RestBaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RestTimeout).
		SetRetryCount(cfg.RetryAttempts - 1).
		SetRetryWaitTime(cfg.RetryBaseDelay).
		SetRetryMaxWaitTime(cfg.RetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	return &RestSource{http: httpClient}
}

func isRetryableResp(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	code := resp.StatusCode()
	return code == 429 || code >= 500
}

// LatestPrice fetches the current quote for a symbol.
func (s *RestSource) LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, traderr.MissingPrice("empty symbol")
	}

	var out quoteResponse

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&out).
		Get("/quotes/" + url.PathEscape(symbol))

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"source": "RestSource",
			"symbol": symbol,
		}).WithError(err).Error("Quote request failed")

		return decimal.Zero, traderr.ExecutionFailed(err, "quote request for %s failed", symbol)
	}

	if resp.StatusCode() == 404 {
		return decimal.Zero, traderr.MissingPrice("no quote for %s", symbol)
	}

	if resp.StatusCode() != 200 {
		return decimal.Zero, traderr.ExecutionFailed(
			fmt.Errorf("HTTP %d: %s", resp.StatusCode(), resp.String()),
			"quote request for %s failed", symbol)
	}

	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, traderr.MissingPrice("unparseable quote %q for %s", out.Price, symbol)
	}

	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, traderr.MissingPrice("non-positive quote for %s", symbol)
	}

	return price, nil
}
