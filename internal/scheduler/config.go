package scheduler

import (
	"time"

	"github.com/revolutionai/storefront/internal/config"
)

// Config controls the sweeper interval, batch size and expiry threshold.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	PendingTTL  time.Duration
	BatchSize   int
	JobTimeout  time.Duration
	// MaxBatches bounds how many batches one run may process.
	MaxBatches int
	LockTTL    time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 10 * time.Minute,
		PendingTTL:  26 * time.Hour,
		BatchSize:   100,
		JobTimeout:  2 * time.Minute,
		MaxBatches:  10,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.Sweeper.Enabled,
		RunInterval: cfg.Sweeper.Interval,
		PendingTTL:  cfg.Sweeper.PendingTTL,
		BatchSize:   cfg.Sweeper.BatchSize,
		JobTimeout:  cfg.Sweeper.JobTimeout,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = defaults.PendingTTL
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.MaxBatches <= 0 {
		c.MaxBatches = defaults.MaxBatches
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 2 * c.JobTimeout
	}
	return c
}
