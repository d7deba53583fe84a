package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ExchangeCRKey protects stored exchange credentials. Override in every
	// real deployment.
	ExchangeCRKey string `envconfig:"EXCHANGE_CREDENTIALS_KEY" default:"dev-only-not-a-real-key"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
