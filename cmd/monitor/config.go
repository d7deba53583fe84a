package monitor

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// PollInterval is the gap between account snapshots.
	PollInterval time.Duration `envconfig:"MONITOR_POLL_INTERVAL" default:"30s"`
	// MetaRefreshInterval is the gap between asset metadata refreshes.
	MetaRefreshInterval time.Duration `envconfig:"MONITOR_META_REFRESH_INTERVAL" default:"1h"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
