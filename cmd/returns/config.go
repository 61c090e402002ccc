package returns

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Quote        string `envconfig:"RETURNS_QUOTE" default:"USDT"`
	LookbackDays int    `envconfig:"RETURNS_LOOKBACK_DAYS" default:"30"`
	BatchSize    int    `envconfig:"RETURNS_BATCH_SIZE" default:"100"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
