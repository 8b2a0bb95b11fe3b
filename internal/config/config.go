package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	StagingRoot          string `env:"STAGING_ROOT,required"`
	PrearchiveRoot       string `env:"PREARCHIVE_ROOT,required"`
	ArchiveRoot          string `env:"ARCHIVE_ROOT,required"`
	DispatchUser         string `env:"DISPATCH_USER" envDefault:"archiver"`
	DispatchIntervalSecs int    `env:"DISPATCH_INTERVAL_SECONDS" envDefault:"60"`
	QuietPeriodSecs      int    `env:"QUIET_PERIOD_SECONDS" envDefault:"120"`
	WorkerConcurrency    int    `env:"WORKER_CONCURRENCY" envDefault:"4"`
	StaleSweepMins       int    `env:"STALE_SWEEP_MINUTES" envDefault:"0"`
	StaleAfterMins       int    `env:"STALE_AFTER_MINUTES" envDefault:"240"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) DispatchInterval() time.Duration {
	return time.Duration(c.DispatchIntervalSecs) * time.Second
}

func (c *Config) QuietPeriod() time.Duration {
	return time.Duration(c.QuietPeriodSecs) * time.Second
}

// StaleSweepInterval returns how often the stale sweep runs; zero disables
// the sweep entirely.
func (c *Config) StaleSweepInterval() time.Duration {
	return time.Duration(c.StaleSweepMins) * time.Minute
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.StaleAfterMins) * time.Minute
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	for name, dir := range map[string]string{
		"STAGING_ROOT":    c.StagingRoot,
		"PREARCHIVE_ROOT": c.PrearchiveRoot,
		"ARCHIVE_ROOT":    c.ArchiveRoot,
	} {
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("%s must be an absolute path, got %q", name, dir)
		}
	}

	if c.DispatchIntervalSecs <= 0 {
		return fmt.Errorf("DISPATCH_INTERVAL_SECONDS must be positive")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if c.DispatchUser == "" {
		return fmt.Errorf("DISPATCH_USER must not be empty")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
