package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// DatabaseURLMain is the primary Postgres DSN. When empty, the service
	// falls back to a local SQLite file so a dev setup needs no database.
	DatabaseURLMain string `envconfig:"DATABASE_URL_MAIN" default:""`
	SQLitePath      string `envconfig:"SQLITE_PATH" default:"signalbridge.db"`
	GormLogLevel    int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
