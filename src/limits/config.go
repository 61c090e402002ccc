package limits

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Config holds the externally loaded trading and risk limits. It is built
// once at startup and injected into the order manager and risk monitor.
type Config struct {
	MinTradeAmount   float64 `envconfig:"MIN_TRADE_AMOUNT" default:"10.0"`
	MaxDailyTrades   int64   `envconfig:"MAX_DAILY_TRADES" default:"50"`
	MaxPositionPct   float64 `envconfig:"MAX_POSITION_SIZE_PCT" default:"0.20"`
	DefaultStopLoss  float64 `envconfig:"DEFAULT_STOP_LOSS_PCT" default:"0.05"`
	ConcentrationPct float64 `envconfig:"CONCENTRATION_THRESHOLD_PCT" default:"25.0"`
	DrawdownPct      float64 `envconfig:"DRAWDOWN_THRESHOLD_PCT" default:"10.0"`
	VolatilityPct    float64 `envconfig:"VOLATILITY_THRESHOLD_PCT" default:"30.0"`
	FeeRate          float64 `envconfig:"TRADING_FEE_RATE" default:"0.0015"`
	PaperTrading     bool    `envconfig:"PAPER_TRADING_MODE" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

func (c Config) MinTradeAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinTradeAmount)
}

func (c Config) FeeRateDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.FeeRate)
}

func (c Config) ConcentrationThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.ConcentrationPct)
}

func (c Config) DrawdownThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.DrawdownPct)
}

func (c Config) VolatilityThreshold() decimal.Decimal {
	return decimal.NewFromFloat(c.VolatilityPct)
}
