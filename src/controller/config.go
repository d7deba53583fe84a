package controller

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// WalletAddress is the account whose positions the service manages.
	WalletAddress string `envconfig:"MAIN_WALLET" default:""`
	// MetaRefreshInterval bounds how often exchange asset metadata is pulled
	// into the coin configs.
	MetaRefreshInterval time.Duration `envconfig:"META_REFRESH_INTERVAL" default:"1h"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
