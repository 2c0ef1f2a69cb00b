package scheduler

import (
	"time"

	"github.com/WordpressDesigne/mpesaprompt/internal/config"
)

// Config controls the stale initiation sweeper loop.
type Config struct {
	BatchSize  int
	Interval   time.Duration
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:  100,
		Interval:   time.Minute,
		StaleAfter: 10 * time.Minute,
	}
}

func ConfigFrom(cfg config.Config) Config {
	return Config{
		Interval:   cfg.Payment.SweepInterval,
		StaleAfter: cfg.Payment.StaleInitiationAfter,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Interval <= 0 {
		c.Interval = defaults.Interval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	return c
}
