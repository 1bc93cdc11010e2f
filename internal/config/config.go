package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const envPrefix = "NODE_ADVISOR"

// Config is the full configuration of the advisor service.
type Config struct {
	Lnd     LndConfig     `mapstructure:"lnd"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Db      *DbConfig     `mapstructure:"db"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	// LogLevel is any level understood by zerolog.ParseLevel.
	LogLevel string `mapstructure:"log-level"`
}

// DefaultConfig returns the values used for every key the config file omits.
func DefaultConfig() *Config {
	return &Config{
		Lnd:      *DefaultLndConfig(),
		Engine:   *DefaultEngineConfig(),
		Poller:   *DefaultPollerConfig(),
		Metrics:  *DefaultMetricsConfig(),
		LogLevel: zerolog.InfoLevel.String(),
	}
}

func (cfg *Config) Validate() error {
	if err := cfg.Lnd.Validate(); err != nil {
		return fmt.Errorf("invalid lnd config: %w", err)
	}

	if err := cfg.Engine.Validate(); err != nil {
		return fmt.Errorf("invalid engine config: %w", err)
	}

	if err := cfg.Poller.Validate(); err != nil {
		return fmt.Errorf("invalid poller config: %w", err)
	}

	if cfg.Db != nil {
		if err := cfg.Db.Validate(); err != nil {
			return fmt.Errorf("invalid db config: %w", err)
		}
	}

	if err := cfg.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level: %w", err)
	}

	return nil
}

// New reads the config file at cfgFile, applies NODE_ADVISOR_* environment
// overrides and validates the result.
func New(cfgFile string) (*Config, error) {
	v, err := read(cfgFile)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// WatchEngine calls onChange with the engine section every time the config
// file changes and the new section is valid. Invalid changes are logged and
// skipped. The watch lasts for the lifetime of the process.
func WatchEngine(cfgFile string, onChange func(*EngineConfig)) error {
	v, err := read(cfgFile)
	if err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decodeEngine(v)
		if err != nil {
			log.Error().Err(err).Str("file", e.Name).Msg("ignoring config change")
			return
		}
		log.Info().Str("file", e.Name).Str("op", e.Op.String()).Msg("engine config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()

	return nil
}

func read(cfgFile string) (*viper.Viper, error) {
	if cfgFile == "" {
		return nil, errors.New("config file path is required")
	}

	v := viper.New()
	v.SetConfigFile(cfgFile)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	if err := bindEnvs(v, reflect.TypeOf(Config{}), ""); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
	}

	return v, nil
}

// bindEnvs registers every mapstructure key of t with v. AutomaticEnv alone
// only reaches keys that are already present in the config file.
func bindEnvs(v *viper.Viper, t reflect.Type, prefix string) error {
	for i := range t.NumField() {
		field := t.Field(i)
		tag, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		ft := field.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct {
			if err := bindEnvs(v, ft, key); err != nil {
				return err
			}
			continue
		}

		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}
	return nil
}

func decodeEngine(v *viper.Viper) (*EngineConfig, error) {
	// Unmarshal merges bound env keys, UnmarshalKey only sees the file.
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode engine config: %w", err)
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	return &cfg.Engine, nil
}
