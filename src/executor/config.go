package executor

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxAttempts caps submissions per leg, the first try included.
	MaxAttempts int `envconfig:"EXECUTOR_MAX_ATTEMPTS" default:"4"`
	// RetryBaseDelay is multiplied by the attempt number between retries.
	RetryBaseDelay time.Duration `envconfig:"EXECUTOR_RETRY_BASE_DELAY" default:"500ms"`
	// LegPacing spaces consecutive entry legs of a single plan.
	LegPacing time.Duration `envconfig:"EXECUTOR_LEG_PACING" default:"150ms"`
	// IdempotencyTTL is how long a key blocks re-execution.
	IdempotencyTTL time.Duration `envconfig:"EXECUTOR_IDEMPOTENCY_TTL" default:"5m"`
	// BatchMaxInFlight bounds concurrent coins in a category batch.
	BatchMaxInFlight int `envconfig:"EXECUTOR_BATCH_MAX_IN_FLIGHT" default:"3"`
	// BatchPacing spaces batch item launches.
	BatchPacing time.Duration `envconfig:"EXECUTOR_BATCH_PACING" default:"250ms"`
}

func GetConfig() Config {
	var config Config
	err := envconfig.Process("", &config)
	if err != nil {
		panic(err)
	}
	return config
}
