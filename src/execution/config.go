package execution

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Workers    int           `envconfig:"EXECUTION_WORKERS" default:"4"`
	QueueSize  int           `envconfig:"EXECUTION_QUEUE_SIZE" default:"256"`
	APIKey     string        `envconfig:"EXCHANGE_API_KEY"`
	APISecret  string        `envconfig:"EXCHANGE_API_SECRET"`
	BaseURL    string        `envconfig:"EXCHANGE_BASE_URL" default:"https://testnet-api.exchange.example.com"`
	APITimeout time.Duration `envconfig:"EXCHANGE_API_TIMEOUT" default:"15s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
