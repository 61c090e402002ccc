package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	LoopPeriod  time.Duration `envconfig:"LOOP_PERIOD" default:"30s"`
	ExpireAfter time.Duration `envconfig:"ORDER_EXPIRE_AFTER" default:"24h"`
	SubmitGrace time.Duration `envconfig:"ORDER_SUBMIT_GRACE" default:"1m"`
	BatchSize   int           `envconfig:"EXECUTOR_BATCH_SIZE" default:"100"`
	RiskSweep   bool          `envconfig:"RISK_SWEEP_ENABLED" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
