package config

import (
	"fmt"
	"time"

	"github.com/routing-advisor/node-advisor/internal/types"
)

const defaultEmergencyWindow = 5 * time.Minute

// EngineConfig holds the tuning parameters of the decision engine.
type EngineConfig struct {
	// MinChannelForwards is the number of forwards a channel needs before its
	// flow is trusted to predict a target balance.
	MinChannelForwards int `mapstructure:"min-channel-forwards"`
	// MinChannelBalanceFraction reserves this share of the capacity on both
	// sides of every channel.
	MinChannelBalanceFraction float64 `mapstructure:"min-channel-balance-fraction"`
	// MinRebalanceDistance is the distance step that escalates priority.
	MinRebalanceDistance float64 `mapstructure:"min-rebalance-distance"`
	// LargestForwardMarginFraction is added on top of the largest observed
	// forward in each direction.
	LargestForwardMarginFraction float64 `mapstructure:"largest-forward-margin-fraction"`
	// MinFeeIncreaseDistance is the distance below target at which fee
	// increases start.
	MinFeeIncreaseDistance float64 `mapstructure:"min-fee-increase-distance"`
	FeeIncreaseMultiplier  float64 `mapstructure:"fee-increase-multiplier"`
	// FeeIncreaseEmergencyWindow is how recent a forward must be for the full
	// increase to apply without time scaling.
	FeeIncreaseEmergencyWindow time.Duration `mapstructure:"fee-increase-emergency-window"`
	// FeeDecreaseWaitDays is the grace period before fees start to decay.
	FeeDecreaseWaitDays float64 `mapstructure:"fee-decrease-wait-days"`
	// MaxFeeRate in parts per million.
	MaxFeeRate int64 `mapstructure:"max-fee-rate"`
	// Days is the length of the observation window.
	Days float64 `mapstructure:"days"`
}

func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		MinChannelForwards:           20,
		MinChannelBalanceFraction:    0.1,
		MinRebalanceDistance:         0.25,
		LargestForwardMarginFraction: 0.1,
		MinFeeIncreaseDistance:       0.5,
		FeeIncreaseMultiplier:        2,
		FeeIncreaseEmergencyWindow:   defaultEmergencyWindow,
		FeeDecreaseWaitDays:          3,
		MaxFeeRate:                   2500,
		Days:                         types.DefaultWindowDays,
	}
}

func (cfg *EngineConfig) Validate() error {
	if cfg.MinChannelForwards < 0 {
		return fmt.Errorf("min-channel-forwards must not be negative")
	}
	if cfg.MinChannelBalanceFraction <= 0 || cfg.MinChannelBalanceFraction >= 0.5 {
		return fmt.Errorf("min-channel-balance-fraction must be in (0, 0.5), got %v", cfg.MinChannelBalanceFraction)
	}
	if cfg.MinRebalanceDistance <= 0 || cfg.MinRebalanceDistance > 1 {
		return fmt.Errorf("min-rebalance-distance must be in (0, 1], got %v", cfg.MinRebalanceDistance)
	}
	if cfg.LargestForwardMarginFraction < 0 {
		return fmt.Errorf("largest-forward-margin-fraction must not be negative")
	}
	if cfg.MinFeeIncreaseDistance <= cfg.MinRebalanceDistance || cfg.MinFeeIncreaseDistance > 1 {
		return fmt.Errorf(
			"min-fee-increase-distance must be in (min-rebalance-distance, 1], got %v", cfg.MinFeeIncreaseDistance,
		)
	}
	if cfg.FeeIncreaseMultiplier < 1 {
		return fmt.Errorf("fee-increase-multiplier must be at least 1, got %v", cfg.FeeIncreaseMultiplier)
	}
	if cfg.FeeIncreaseEmergencyWindow <= 0 {
		return fmt.Errorf("fee-increase-emergency-window must be positive")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("days must be positive, got %v", cfg.Days)
	}
	if cfg.FeeDecreaseWaitDays < 0 || cfg.FeeDecreaseWaitDays >= cfg.Days {
		return fmt.Errorf("fee-decrease-wait-days must be in [0, days), got %v", cfg.FeeDecreaseWaitDays)
	}
	if cfg.MaxFeeRate <= 0 {
		return fmt.Errorf("max-fee-rate must be positive")
	}

	return nil
}
