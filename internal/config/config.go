package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every runtime knob. Values come from the environment,
// optionally seeded from a .env file.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// Cookie + KV TTL for user sessions. Must stay at or above the client
	// reconnect window.
	UserSessionTTL   time.Duration `env:"USER_SESSION_TTL" envDefault:"1h"`
	WSSessionTTL     time.Duration `env:"WEB_SOCKET_SESSION_TTL" envDefault:"1h"`
	SessionThreshold time.Duration `env:"SESSION_SLIDING_THRESHOLD" envDefault:"10m"`

	OutboxWorkerLockTTL time.Duration `env:"OUTBOX_WORKER_LOCK_TIMEOUT" envDefault:"5m"`
	OutboxRepairLockTTL time.Duration `env:"OUTBOX_REPAIR_LOCK_TIMEOUT" envDefault:"5m"`
	JobInterval         time.Duration `env:"JOB_SCHEDULE_INTERVAL" envDefault:"60s"`

	OutboxBatchSize  int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
	OutboxMaxRetries int           `env:"OUTBOX_MAX_RETRIES" envDefault:"5"`
	OutboxLease      time.Duration `env:"OUTBOX_IN_PROGRESS_LEASE" envDefault:"5m"`
	RepairWindow     time.Duration `env:"OUTBOX_REPAIR_WINDOW" envDefault:"3m"`
	RepairBatchSize  int           `env:"OUTBOX_REPAIR_BATCH_SIZE" envDefault:"200"`
	RepairBatchDelay time.Duration `env:"OUTBOX_REPAIR_BATCH_DELAY" envDefault:"100ms"`
}

// Load parses configuration from the environment. A missing .env file is
// not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return cfg, nil
}
