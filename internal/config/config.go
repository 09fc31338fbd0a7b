package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the server configuration, populated from the environment.
// Connection strings and ports live here, outside the relay core.
type Config struct {
	Addr string `envconfig:"ADDR" default:":8080"`

	// StorageDriver selects the durable store backend: sqlite, postgres
	// or memory.
	StorageDriver string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
	DatabaseURL   string `envconfig:"DATABASE_URL"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:"chat_messages.db"`

	HistoryLimit int `envconfig:"HISTORY_LIMIT" default:"100"`

	// Startup schema-creation retry budget.
	InitAttempts int           `envconfig:"INIT_ATTEMPTS" default:"5"`
	InitDelay    time.Duration `envconfig:"INIT_DELAY" default:"5s"`

	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogConsole bool   `envconfig:"LOG_CONSOLE" default:"false"`
}

// Load reads the configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
