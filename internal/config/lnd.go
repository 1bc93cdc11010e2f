package config

import (
	"errors"
	"time"
)

const (
	defaultLndGRPCHost      = "127.0.0.1:10009"
	defaultLndTimeout       = 30 * time.Second
	defaultLndMaxRetryTimes = 3
	defaultLndRetryInterval = time.Second
	defaultLndPageSize      = 1000
)

// LndConfig defines how to reach the lnd gRPC interface.
type LndConfig struct {
	GRPCHost      string        `mapstructure:"grpc-host"`
	TLSCertPath   string        `mapstructure:"tls-cert-path"`
	MacaroonPath  string        `mapstructure:"macaroon-path"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetryTimes uint          `mapstructure:"max-retry-times"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
	// PageSize bounds the events requested per paginated call.
	PageSize uint32 `mapstructure:"page-size"`
}

func DefaultLndConfig() *LndConfig {
	return &LndConfig{
		GRPCHost:      defaultLndGRPCHost,
		Timeout:       defaultLndTimeout,
		MaxRetryTimes: defaultLndMaxRetryTimes,
		RetryInterval: defaultLndRetryInterval,
		PageSize:      defaultLndPageSize,
	}
}

func (cfg *LndConfig) Validate() error {
	if cfg.GRPCHost == "" {
		return errors.New("grpc-host cannot be empty")
	}
	if cfg.TLSCertPath == "" {
		return errors.New("tls-cert-path cannot be empty")
	}
	if cfg.MacaroonPath == "" {
		return errors.New("macaroon-path cannot be empty")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if cfg.MaxRetryTimes == 0 {
		return errors.New("max-retry-times must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return errors.New("retry-interval must be positive")
	}
	if cfg.PageSize == 0 {
		return errors.New("page-size must be positive")
	}

	return nil
}
