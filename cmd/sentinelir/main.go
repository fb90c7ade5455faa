package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"sentinelir/config"
	"sentinelir/internal/logger"
)

const defaultConfigName = "sentinelir.yml"

var (
	configArg string
	cfg       *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "sentinelir",
	Short:         "Security incident response engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, path, err := loadConfig(configArg)
		if err != nil {
			return err
		}
		cfg = loaded
		lc := cfg.Sentinel.Logging
		if err := logger.Init(logger.Options{
			Enabled: lc.Enabled,
			Level:   lc.Level,
			File:    lc.File,
			Console: lc.Console,
			JSON:    lc.Format == "json",
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if path != "" {
			logger.Infof("Config loaded from: %s", path)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configArg, "config", "c", "", "path to "+defaultConfigName)
	rootCmd.AddCommand(runCmd, analyzeCmd, decideCmd, actionTypesCmd, catalogCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("sentinelir: %v", err)
	}
}

func findConfigFile(configArg string) string {
	if configArg != "" {
		if _, err := os.Stat(configArg); err == nil {
			return configArg
		}
		log.Printf("Warning: config file not found at %s, trying default locations", configArg)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		path := filepath.Join(filepath.Dir(exePath), defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadConfig reads the config file when one is found. Without a file the
// defaults and environment overrides still apply.
func loadConfig(configArg string) (*config.Config, string, error) {
	path := findConfigFile(configArg)
	var c *config.Config
	if path == "" {
		c = &config.Config{}
		config.ApplyEnv(c)
	} else {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config: %w", err)
		}
		c = loaded
	}
	applyDefaults(c)
	return c, path, nil
}

func applyDefaults(cfg *config.Config) {
	s := &cfg.Sentinel

	if s.Input.Redis.Addr == "" {
		s.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if s.Input.Redis.Key == "" {
		s.Input.Redis.Key = "security_events"
	}
	if s.Input.Redis.BlockTimeout == 0 {
		s.Input.Redis.BlockTimeout = 5 * time.Second
	}

	if s.Store.Mode == "" {
		s.Store.Mode = "memory"
	}
	if s.Store.Redis.Addr == "" {
		s.Store.Redis.Addr = s.Input.Redis.Addr
	}
	if s.Store.Redis.Password == "" {
		s.Store.Redis.Password = s.Input.Redis.Password
	}
	if s.Store.Redis.KeyPrefix == "" {
		s.Store.Redis.KeyPrefix = "sentinelir"
	}

	if s.Catalog.RefreshInterval <= 0 {
		s.Catalog.RefreshInterval = 15 * time.Minute
	}

	if s.Notify.Mode == "" {
		s.Notify.Mode = "none"
	}
	if s.Notify.NATS.Subject == "" {
		s.Notify.NATS.Subject = "sentinel.incidents.notify"
	}

	if s.Decisions.File.Path == "" {
		s.Decisions.File.Path = "output/decisions.jsonl"
	}

	if s.Metrics.Addr == "" {
		s.Metrics.Addr = ":9108"
	}

	if s.Pipeline.Workers <= 0 {
		s.Pipeline.Workers = 4
	}

	if s.Service.EventCacheSize <= 0 {
		s.Service.EventCacheSize = 1024
	}

	if s.Logging.Level == "" {
		s.Logging.Level = "info"
	}
}
