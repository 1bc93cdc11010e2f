package config

import (
	"errors"
	"fmt"
	"net"
)

const (
	defaultMetricsHost = "0.0.0.0"
	defaultMetricsPort = 2112
)

// MetricsConfig defines the prometheus endpoint.
type MetricsConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Host: defaultMetricsHost,
		Port: defaultMetricsPort,
	}
}

func (cfg *MetricsConfig) Validate() error {
	if cfg.Port < 0 || cfg.Port > 65535 {
		return fmt.Errorf("port number must be between 0 and 65535, got %d", cfg.Port)
	}

	if net.ParseIP(cfg.Host) == nil {
		return errors.New("invalid metrics host")
	}

	return nil
}

func (cfg *MetricsConfig) GetMetricsAddr() string {
	return net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
}
