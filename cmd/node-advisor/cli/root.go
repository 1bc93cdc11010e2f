package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/routing-advisor/node-advisor/internal/config"
	"github.com/routing-advisor/node-advisor/pkg"
)

const (
	defaultConfigFileName = "node-advisor.yml"
	configPathEnv         = "NODE_ADVISOR_CONFIG"
)

var (
	cfgPath string
	rootCmd = &cobra.Command{
		Use:           "node-advisor",
		Short:         "Recommends channel balances and fee rates for an lnd node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func Setup() error {
	homePath, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	defaultConfigPath := pkg.Getenv(configPathEnv, getDefaultConfigFile(homePath, defaultConfigFileName))

	rootCmd.AddCommand(StartServerCmd())
	rootCmd.AddCommand(AdviseCmd())
	rootCmd.AddCommand(HistoryCmd())
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath, "config file")

	return rootCmd.Execute()
}

func getDefaultConfigFile(homePath, filename string) string {
	return filepath.Join(homePath, filename)
}

func GetConfigPath() string {
	return cfgPath
}

// loadConfig reads the config and applies its log level globally.
func loadConfig() (*config.Config, error) {
	cfg, err := config.New(GetConfigPath())
	if err != nil {
		return nil, fmt.Errorf("error while loading config file %s: %w", GetConfigPath(), err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)

	return cfg, nil
}
