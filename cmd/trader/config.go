package main

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v4"

	configtypes "github.com/daszybak/interval_trader/internal/config"
	"github.com/daszybak/interval_trader/internal/polymarket"
	"github.com/daszybak/interval_trader/internal/pricefeed"
	"github.com/daszybak/interval_trader/internal/sampler"
	"github.com/daszybak/interval_trader/internal/scheduler"
	"github.com/daszybak/interval_trader/internal/supervisor"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

type config struct {
	LogLevel string  `yaml:"log_level"` // debug, info, warn, error
	LogDir   string  `yaml:"log_dir"`
	Amount   float64 `yaml:"amount"`
	Timezone struct {
		Local                   string `yaml:"local"`
		SettlementOffsetMinutes int    `yaml:"settlement_offset_minutes"`
	} `yaml:"timezone"`
	Scheduler struct {
		Mode              string               `yaml:"mode"`        // boundary, decision
		OnBoundary        string               `yaml:"on_boundary"` // current, next
		JoinThreshold     configtypes.Duration `yaml:"join_threshold"`
		BoundaryTolerance configtypes.Duration `yaml:"boundary_tolerance"`
		MaxSleep          configtypes.Duration `yaml:"max_sleep"`
		CycleInterval     configtypes.Duration `yaml:"cycle_interval"`
		LookupTimeout     configtypes.Duration `yaml:"lookup_timeout"`
		PriceTimeout      configtypes.Duration `yaml:"price_timeout"`
		GracePeriod       configtypes.Duration `yaml:"grace_period"`
	} `yaml:"scheduler"`
	Strategy struct {
		Command         string   `yaml:"command"`
		Args            []string `yaml:"args"`
		Dir             string   `yaml:"dir"`
		OutputTailBytes int      `yaml:"output_tail_bytes"`
	} `yaml:"strategy"`
	Polymarket struct {
		GammaURL   string               `yaml:"gamma_url"`
		ClobURL    string               `yaml:"clob_url"`
		SlugPrefix string               `yaml:"slug_prefix"`
		Timeout    configtypes.Duration `yaml:"timeout"`
	} `yaml:"polymarket"`
	PriceFeed struct {
		BinanceURL string               `yaml:"binance_url"`
		Symbol     string               `yaml:"symbol"`
		Timeout    configtypes.Duration `yaml:"timeout"`
		Stream     struct {
			Enabled bool                 `yaml:"enabled"`
			URL     string               `yaml:"url"`
			Topic   string               `yaml:"topic"`
			Symbol  string               `yaml:"symbol"`
			MaxAge  configtypes.Duration `yaml:"max_age"`
		} `yaml:"stream"`
	} `yaml:"price_feed"`
	Sampler struct {
		Enabled  bool   `yaml:"enabled"`
		Schedule string `yaml:"schedule"`
		CSVPath  string `yaml:"csv_path"`
	} `yaml:"sampler"`
	Cache struct {
		TTL   configtypes.Duration `yaml:"ttl"`
		Redis struct {
			Addr     string             `yaml:"addr"`
			Password configtypes.Secret `yaml:"password"`
			DB       int                `yaml:"db"`
			Prefix   string             `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
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

func defaultConfig() *config {
	cfg := &config{
		LogLevel: "info",
		LogDir:   "data/auto_trader_logs",
		Amount:   scheduler.DefaultAmount,
	}
	cfg.Timezone.Local = "Asia/Shanghai"
	cfg.Timezone.SettlementOffsetMinutes = -300

	cfg.Scheduler.Mode = "boundary"
	cfg.Scheduler.OnBoundary = "current"
	cfg.Scheduler.JoinThreshold = configtypes.Duration(5 * time.Minute)
	cfg.Scheduler.BoundaryTolerance = configtypes.Duration(scheduler.DefaultBoundaryTolerance)
	cfg.Scheduler.MaxSleep = configtypes.Duration(scheduler.DefaultMaxSleep)
	cfg.Scheduler.CycleInterval = configtypes.Duration(scheduler.DefaultCycleInterval)
	cfg.Scheduler.LookupTimeout = configtypes.Duration(scheduler.DefaultLookupTimeout)
	cfg.Scheduler.PriceTimeout = configtypes.Duration(scheduler.DefaultPriceTimeout)
	cfg.Scheduler.GracePeriod = configtypes.Duration(supervisor.DefaultGracePeriod)

	cfg.Strategy.Command = "python3"
	cfg.Strategy.Args = []string{"btc_15min_strategy.py"}
	cfg.Strategy.OutputTailBytes = supervisor.DefaultTailBytes

	cfg.Polymarket.GammaURL = "https://gamma-api.polymarket.com"
	cfg.Polymarket.SlugPrefix = polymarket.DefaultSlugPrefix
	cfg.Polymarket.Timeout = configtypes.Duration(30 * time.Second)

	cfg.PriceFeed.BinanceURL = pricefeed.DefaultBinanceURL
	cfg.PriceFeed.Symbol = pricefeed.DefaultSymbol
	cfg.PriceFeed.Timeout = configtypes.Duration(10 * time.Second)
	cfg.PriceFeed.Stream.URL = "wss://ws-live-data.polymarket.com"
	cfg.PriceFeed.Stream.Symbol = "btcusdt"
	cfg.PriceFeed.Stream.MaxAge = configtypes.Duration(30 * time.Second)

	cfg.Sampler.Schedule = sampler.DefaultSchedule
	cfg.Sampler.CSVPath = sampler.DefaultCSVPath

	cfg.Cache.TTL = configtypes.Duration(10 * time.Minute)
	cfg.Cache.Redis.Prefix = "interval_trader:"

	cfg.Database.Port = 5432
	cfg.Database.PoolSize = 4
	cfg.Database.SSLMode = "disable"
	return cfg
}

// readConfig returns the defaults overlaid with the file at configPath, if any.
func readConfig(configPath string) (*config, error) {
	cfg := defaultConfig()
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
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error")
	}
	if cfg.LogDir == "" {
		return fmt.Errorf("log_dir is required")
	}
	if cfg.Amount <= 0 {
		return fmt.Errorf("amount must be greater than 0")
	}

	// Timezones
	if cfg.Timezone.Local == "" {
		return fmt.Errorf("timezone.local is required")
	}
	if cfg.Timezone.SettlementOffsetMinutes < -14*60 || cfg.Timezone.SettlementOffsetMinutes > 14*60 {
		return fmt.Errorf("timezone.settlement_offset_minutes must be within +-840")
	}

	// Scheduler
	if _, err := scheduler.ParseMode(cfg.Scheduler.Mode); err != nil {
		return fmt.Errorf("scheduler.mode: %w", err)
	}
	if _, err := timegrid.ParseOnBoundary(cfg.Scheduler.OnBoundary); err != nil {
		return fmt.Errorf("scheduler.on_boundary: %w", err)
	}
	if cfg.Scheduler.JoinThreshold.Duration() <= 0 || cfg.Scheduler.JoinThreshold.Duration() >= timegrid.Length {
		return fmt.Errorf("scheduler.join_threshold must be greater than 0 and under 15m")
	}
	if cfg.Scheduler.MaxSleep.Duration() <= 0 {
		return fmt.Errorf("scheduler.max_sleep must be greater than 0")
	}
	if cfg.Scheduler.BoundaryTolerance.Duration() >= timegrid.Length {
		return fmt.Errorf("scheduler.boundary_tolerance must be under 15m")
	}

	// Strategy
	if cfg.Strategy.Command == "" {
		return fmt.Errorf("strategy.command is required")
	}

	// Polymarket
	if cfg.Polymarket.GammaURL == "" {
		return fmt.Errorf("polymarket.gamma_url is required")
	}

	// Price feed
	if cfg.PriceFeed.BinanceURL == "" && !cfg.PriceFeed.Stream.Enabled {
		return fmt.Errorf("price_feed needs binance_url or an enabled stream")
	}
	if cfg.PriceFeed.Stream.Enabled && cfg.PriceFeed.Stream.URL == "" {
		return fmt.Errorf("price_feed.stream.url is required when the stream is enabled")
	}

	// Database
	if cfg.Database.Enabled {
		if cfg.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			return fmt.Errorf("database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
		if cfg.Database.Database == "" {
			return fmt.Errorf("database.database is required")
		}
		if cfg.Database.PoolSize <= 0 {
			return fmt.Errorf("database.pool_size must be greater than 0")
		}
	}

	return nil
}
