package main

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"

	configtypes "github.com/daszybak/interval_trader/internal/config"
	"github.com/daszybak/interval_trader/internal/trades"
)

// config reads the subset of the trader config the report needs.
type config struct {
	TradesDir string `yaml:"trades_dir"`
	Timezone  struct {
		Local string `yaml:"local"`
	} `yaml:"timezone"`
	Database struct {
		Enabled  bool               `yaml:"enabled"`
		Host     string             `yaml:"host"`
		Port     int                `yaml:"port"`
		User     string             `yaml:"user"`
		Password configtypes.Secret `yaml:"password"`
		Database string             `yaml:"database"`
		PoolSize int                `yaml:"pool_size"`
		SSLMode  string             `yaml:"ssl_mode"`
	} `yaml:"database"`
}

func readConfig(configPath string) (*config, error) {
	cfg := &config{TradesDir: trades.DefaultDir}
	cfg.Timezone.Local = "Asia/Shanghai"
	cfg.Database.Port = 5432
	cfg.Database.PoolSize = 2
	cfg.Database.SSLMode = "disable"

	if configPath != "" {
		rawConfig, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("couldn't read file %s: %w", configPath, err)
		}
		if err = yaml.Unmarshal(rawConfig, cfg); err != nil {
			return nil, fmt.Errorf("couldn't parse config: %w", err)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("couldn't validate config: %w", err)
	}
	return cfg, nil
}

func validateConfig(cfg *config) error {
	if cfg.TradesDir == "" {
		return fmt.Errorf("trades_dir is required")
	}
	if cfg.Timezone.Local == "" {
		return fmt.Errorf("timezone.local is required")
	}
	if cfg.Database.Enabled {
		if cfg.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
	}
	return nil
}
