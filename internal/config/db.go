package config

import (
	"errors"
	"net/url"
)

const defaultMaxRunsLimit = 100

// DbConfig holds the MongoDB connection used to record advisory runs.
type DbConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DbName   string `mapstructure:"db-name"`
	Address  string `mapstructure:"address"`
	// MaxRunsLimit caps the number of runs returned by a single query.
	MaxRunsLimit int64 `mapstructure:"max-runs-limit"`
}

func (cfg *DbConfig) Validate() error {
	if cfg.Username == "" {
		return errors.New("missing db username")
	}
	if cfg.Password == "" {
		return errors.New("missing db password")
	}
	if cfg.DbName == "" {
		return errors.New("missing db name")
	}
	if cfg.Address == "" {
		return errors.New("missing db address")
	}

	u, err := url.Parse(cfg.Address)
	if err != nil {
		return errors.New("invalid db address")
	}
	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return errors.New("db address must use the mongodb or mongodb+srv scheme")
	}

	if cfg.MaxRunsLimit < 0 {
		return errors.New("max-runs-limit must not be negative")
	}
	if cfg.MaxRunsLimit == 0 {
		cfg.MaxRunsLimit = defaultMaxRunsLimit
	}

	return nil
}
