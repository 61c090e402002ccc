package pricing

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds price source settings loaded from the environment.
type Config struct {
	RestBaseURL     string        `envconfig:"PRICE_API_BASE_URL" default:"https://api.coingecko.com/api/v3"`
	RestTimeout     time.Duration `envconfig:"PRICE_API_TIMEOUT" default:"10s"`
	FeedURL         string        `envconfig:"PRICE_FEED_URL" default:"wss://api.hyperliquid.xyz/ws"`
	FeedSymbols     []string      `envconfig:"PRICE_FEED_SYMBOLS" default:"BTC,ETH,SOL"`
	MaxQuoteAge     time.Duration `envconfig:"PRICE_MAX_QUOTE_AGE" default:"30s"`
	ReconnectDelay  time.Duration `envconfig:"PRICE_FEED_RECONNECT_DELAY" default:"5s"`
	MaxReconnects   int           `envconfig:"PRICE_FEED_MAX_RECONNECTS" default:"10"`
	PingInterval    time.Duration `envconfig:"PRICE_FEED_PING_INTERVAL" default:"20s"`
	RetryAttempts   int           `envconfig:"PRICE_API_RETRY_ATTEMPTS" default:"5"`
	RetryBaseDelay  time.Duration `envconfig:"PRICE_API_RETRY_BASE_DELAY" default:"500ms"`
	RetryMaxBackoff time.Duration `envconfig:"PRICE_API_RETRY_MAX_BACKOFF" default:"8s"`
}

// GetConfig loads the pricing configuration from environment variables.
func GetConfig() Config {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		panic(err.Error())
	}
	return cfg
}
