package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
lnd:
  grpc-host: 127.0.0.1:10009
  tls-cert-path: /lnd/tls.cert
  macaroon-path: /lnd/readonly.macaroon
engine:
  min-channel-forwards: 10
  max-fee-rate: 2000
poller:
  refresh-interval: 2m
  debounce: 5s
metrics:
  host: 0.0.0.0
  port: 2113
log-level: debug
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Lnd.TLSCertPath = "/lnd/tls.cert"
	cfg.Lnd.MacaroonPath = "/lnd/readonly.macaroon"
	return cfg
}

func TestNew(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testConfigYAML)

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "/lnd/readonly.macaroon", cfg.Lnd.MacaroonPath)
	assert.Equal(t, defaultLndTimeout, cfg.Lnd.Timeout)
	assert.Equal(t, 10, cfg.Engine.MinChannelForwards)
	assert.Equal(t, int64(2000), cfg.Engine.MaxFeeRate)
	// omitted keys keep their defaults
	assert.Equal(t, 0.1, cfg.Engine.MinChannelBalanceFraction)
	assert.Equal(t, 14.0, cfg.Engine.Days)
	assert.Equal(t, 5*time.Minute, cfg.Engine.FeeIncreaseEmergencyWindow)
	assert.Equal(t, 2*time.Minute, cfg.Poller.RefreshInterval)
	assert.Equal(t, 5*time.Second, cfg.Poller.Debounce)
	assert.Equal(t, 2113, cfg.Metrics.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Nil(t, cfg.Db)
}

func TestNew_EnvOverride(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testConfigYAML)
	t.Setenv("NODE_ADVISOR_ENGINE_MAX_FEE_RATE", "1500")
	t.Setenv("NODE_ADVISOR_LND_GRPC_HOST", "lnd:10009")

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), cfg.Engine.MaxFeeRate)
	assert.Equal(t, "lnd:10009", cfg.Lnd.GRPCHost)
}

func TestNew_EnvOverrideKeysMissingFromFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testConfigYAML)
	t.Setenv("NODE_ADVISOR_ENGINE_DAYS", "7")
	t.Setenv("NODE_ADVISOR_ENGINE_MIN_REBALANCE_DISTANCE", "0.3")
	t.Setenv("NODE_ADVISOR_ENGINE_FEE_INCREASE_EMERGENCY_WINDOW", "10m")
	t.Setenv("NODE_ADVISOR_LND_PAGE_SIZE", "500")

	cfg, err := New(path)
	require.NoError(t, err)
	assert.Equal(t, 7.0, cfg.Engine.Days)
	assert.Equal(t, 0.3, cfg.Engine.MinRebalanceDistance)
	assert.Equal(t, 10*time.Minute, cfg.Engine.FeeIncreaseEmergencyWindow)
	assert.Equal(t, uint32(500), cfg.Lnd.PageSize)
	// keys set in neither place keep their defaults
	assert.Equal(t, 0.1, cfg.Engine.MinChannelBalanceFraction)
	assert.Nil(t, cfg.Db)
}

func TestNew_EnvOverrideEnablesDb(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testConfigYAML)
	t.Setenv("NODE_ADVISOR_DB_USERNAME", "user")
	t.Setenv("NODE_ADVISOR_DB_PASSWORD", "password")
	t.Setenv("NODE_ADVISOR_DB_DB_NAME", "advisor")
	t.Setenv("NODE_ADVISOR_DB_ADDRESS", "mongodb://localhost:27017")

	cfg, err := New(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Db)
	assert.Equal(t, "advisor", cfg.Db.DbName)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Db.Address)
}

func TestNew_Errors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := New("")
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := New(filepath.Join(t.TempDir(), "absent.yml"))
		require.Error(t, err)
	})

	t.Run("invalid engine section", func(t *testing.T) {
		path := writeConfig(t, t.TempDir(), `
lnd:
  tls-cert-path: /lnd/tls.cert
  macaroon-path: /lnd/readonly.macaroon
engine:
  min-channel-balance-fraction: 0.7
`)

		_, err := New(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min-channel-balance-fraction")
	})
}

func TestConfig_OptionalDb(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Nil(t, cfg.Db)

	cfg.Db = &DbConfig{
		Username: "user",
		Password: "password",
		DbName:   "advisor",
		Address:  "mongodb://localhost:27017",
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(defaultMaxRunsLimit), cfg.Db.MaxRunsLimit)

	cfg.Db.Address = "http://localhost:27017"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid db config")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *Config)
		errMsg string
	}{
		{"missing macaroon", func(cfg *Config) { cfg.Lnd.MacaroonPath = "" }, "macaroon-path"},
		{"zero page size", func(cfg *Config) { cfg.Lnd.PageSize = 0 }, "page-size"},
		{"zero refresh interval", func(cfg *Config) { cfg.Poller.RefreshInterval = 0 }, "refresh-interval"},
		{"metrics port", func(cfg *Config) { cfg.Metrics.Port = 70000 }, "port number"},
		{"metrics host", func(cfg *Config) { cfg.Metrics.Host = "not-an-ip" }, "metrics host"},
		{"log level", func(cfg *Config) { cfg.LogLevel = "loud" }, "log-level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestWatchEngine(t *testing.T) {
	path := writeConfig(t, t.TempDir(), testConfigYAML)

	var (
		mu      sync.Mutex
		applied []int64
	)
	err := WatchEngine(path, func(cfg *EngineConfig) {
		mu.Lock()
		defer mu.Unlock()
		applied = append(applied, cfg.MaxFeeRate)
	})
	require.NoError(t, err)

	writeConfig(t, filepath.Dir(path), `
engine:
  min-fee-increase-distance: 0.1
`)
	writeConfig(t, filepath.Dir(path), `
engine:
  max-fee-rate: 900
`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(applied) > 0 && applied[len(applied)-1] == 900
	}, 5*time.Second, 50*time.Millisecond)
}
