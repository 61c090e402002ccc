package returns

import (
	"context"
	"net/http"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
)

// Provider turns exchange daily klines into close-over-close return
// series. It satisfies the risk monitor's SeriesProvider contract.
type Provider struct {
	exchange goex.API
	quote    string
}

func NewProvider(quote string) *Provider {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return &Provider{
		exchange: binance.NewWithConfig(apiConfig),
		quote:    quote,
	}
}

// DailyReturns fetches days+1 daily candles and computes simple returns
// between consecutive closes. Zero or missing closes are skipped.
func (p *Provider) DailyReturns(ctx context.Context, symbol string, days int) ([]decimal.Decimal, error) {
	pair := goex.NewCurrencyPair(
		goex.Currency{Symbol: symbol},
		goex.Currency{Symbol: p.quote},
	)

	klines, err := p.exchange.GetKlineRecords(pair, goex.KLINE_PERIOD_1DAY, days+1)
	if err != nil {
		return nil, err
	}

	returns := make([]decimal.Decimal, 0, len(klines))

	prev := 0.0
	for i := range klines {
		closePrice := klines[i].Close
		if prev > 0 && closePrice > 0 {
			returns = append(returns, decimal.NewFromFloat(closePrice/prev-1))
		}
		prev = closePrice
	}

	return returns, nil
}
