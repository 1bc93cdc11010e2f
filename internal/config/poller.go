package config

import (
	"errors"
	"time"
)

const (
	defaultRefreshInterval = 5 * time.Minute
	defaultDebounce        = 10 * time.Second
)

type PollerConfig struct {
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	// Debounce is how long the advisor waits for further snapshot changes
	// before it recomputes.
	Debounce time.Duration `mapstructure:"debounce"`
}

func DefaultPollerConfig() *PollerConfig {
	return &PollerConfig{
		RefreshInterval: defaultRefreshInterval,
		Debounce:        defaultDebounce,
	}
}

func (cfg *PollerConfig) Validate() error {
	if cfg.RefreshInterval <= 0 {
		return errors.New("refresh-interval must be positive")
	}

	// 0 disables debouncing, negative values are reset to the default
	if cfg.Debounce < 0 {
		cfg.Debounce = defaultDebounce
	}

	if cfg.Debounce >= cfg.RefreshInterval {
		return errors.New("debounce must be shorter than refresh-interval")
	}

	return nil
}
