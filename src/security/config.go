package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ExchangeCRKey is the base64-encoded 32-byte key used to seal stored
	// exchange API credentials. The default only works for local dev.
	ExchangeCRKey string `envconfig:"EXCHANGE_CREDENTIALS_KEY" default:"c2FtcGxlLWtleS1mb3ItbG9jYWwtZGV2LW9ubHkhISE="`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
