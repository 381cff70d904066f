package jobqueue

import (
	"time"

	"github.com/rkoehler/txnflow/internal/pkg/env"
)

// Config carries the tunables of the completion pipeline. Defaults mirror the
// upstream contract: a 30 second simulated settlement latency, 3 attempts
// total, 60 seconds between attempts.
type Config struct {
	Workers         int
	ProcessingDelay time.Duration
	RetryBackoff    time.Duration
	MaxAttempts     int
}

// DefaultConfig returns the built-in tunables without consulting the environment.
func DefaultConfig() Config {
	return Config{
		Workers:         3,
		ProcessingDelay: 30 * time.Second,
		RetryBackoff:    60 * time.Second,
		MaxAttempts:     3,
	}
}

// ConfigFromEnv reads the queue tunables from the environment, falling back to
// the defaults above.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Workers = env.GetEnvInt("QUEUE_WORKER_COUNT", cfg.Workers)
	cfg.ProcessingDelay = time.Duration(env.GetEnvInt("PROCESSING_DELAY_SECONDS", int(cfg.ProcessingDelay/time.Second))) * time.Second
	cfg.RetryBackoff = time.Duration(env.GetEnvInt("RETRY_BACKOFF_SECONDS", int(cfg.RetryBackoff/time.Second))) * time.Second
	cfg.MaxAttempts = env.GetEnvInt("MAX_ATTEMPTS", cfg.MaxAttempts)
	return cfg
}

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	return c
}
