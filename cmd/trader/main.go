package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daszybak/interval_trader/internal/cache"
	"github.com/daszybak/interval_trader/internal/market"
	"github.com/daszybak/interval_trader/internal/polymarket"
	"github.com/daszybak/interval_trader/internal/polymarket/clob"
	"github.com/daszybak/interval_trader/internal/polymarket/gamma"
	"github.com/daszybak/interval_trader/internal/pricefeed"
	"github.com/daszybak/interval_trader/internal/sampler"
	"github.com/daszybak/interval_trader/internal/scheduler"
	"github.com/daszybak/interval_trader/internal/store"
	"github.com/daszybak/interval_trader/internal/supervisor"
	"github.com/daszybak/interval_trader/internal/timegrid"
)

const usage = "usage: trader [-config path] [amount]"

var errUsage = errors.New(usage)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	flag.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// Validated before anything touches the filesystem.
	amount, err := parseArgs(flag.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := readConfig(*configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}
	if amount > 0 {
		cfg.Amount = amount
	}

	logFile, err := openLogFile(cfg.LogDir, time.Now())
	if err != nil {
		log.Fatalf("Couldn't open log file: %v", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	logger.Info("trader starting", "amount", cfg.Amount, "log_file", logFile.Name())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("trader failed", "error", err)
		logFile.Close()
		os.Exit(1)
	}
	logger.Info("trader stopped")
}

// parseArgs returns the trade amount from the positional args, or 0 when absent.
func parseArgs(args []string) (float64, error) {
	switch len(args) {
	case 0:
		return 0, nil
	case 1:
	default:
		return 0, errUsage
	}

	amount, err := strconv.ParseFloat(args[0], 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("invalid amount %q: must be a number\n%s", args[0], usage)
	}
	if amount <= 0 {
		return 0, fmt.Errorf("invalid amount %q: must be greater than 0\n%s", args[0], usage)
	}
	return amount, nil
}

func openLogFile(dir string, now time.Time) (*os.File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("couldn't create log dir: %w", err)
	}
	name := filepath.Join(dir, "auto_trader_"+now.Format("20060102_150405")+".log")
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

// drain waits for the background workers, then runs closers in order.
func drain(wg *sync.WaitGroup, closers ...func()) {
	wg.Wait()
	for _, c := range closers {
		c()
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func run(ctx context.Context, cfg *config, logger *slog.Logger) error {
	grid, err := timegrid.LoadGrid(cfg.Timezone.Local, cfg.Timezone.SettlementOffsetMinutes)
	if err != nil {
		return err
	}

	lookup, closeCache := newLookup(ctx, cfg, logger)
	defer closeCache()

	// Background workers write to the store, so it closes after they drain.
	var (
		wg      sync.WaitGroup
		closers []func()
	)
	defer func() { drain(&wg, closers...) }()

	feed := newFeed(ctx, cfg, logger, &wg)

	var (
		runRecorder   scheduler.RunRecorder
		priceRecorder sampler.Recorder
	)
	if cfg.Database.Enabled {
		db, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		closers = append(closers, db.Close)
		runRecorder = store.NewRunRecorder(db.Queries)
		priceRecorder = store.NewPriceRecorder(db.Queries)
		logger.Info("connected to database", "host", cfg.Database.Host, "database", cfg.Database.Database)
	}

	if cfg.Sampler.Enabled {
		s, err := sampler.New(sampler.Config{
			Schedule: cfg.Sampler.Schedule,
			CSVPath:  cfg.Sampler.CSVPath,
			Timeout:  cfg.PriceFeed.Timeout.Duration(),
			Location: grid.Location(),
		}, feed, priceRecorder, logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Start(ctx); err != nil {
				logger.Error("sampler failed", "error", err)
			}
		}()
	}

	schedCfg, err := schedulerConfig(cfg)
	if err != nil {
		return err
	}
	checkStrategy(cfg, logger)

	sched := scheduler.New(schedCfg, scheduler.Deps{
		Grid:       grid,
		Lookup:     lookup,
		Feed:       feed,
		Supervisor: supervisor.New(cfg.Strategy.OutputTailBytes, logger),
		Recorder:   runRecorder,
		Logger:     logger,
	})
	return sched.Run(ctx)
}

func schedulerConfig(cfg *config) (scheduler.Config, error) {
	mode, err := scheduler.ParseMode(cfg.Scheduler.Mode)
	if err != nil {
		return scheduler.Config{}, err
	}
	onBoundary, err := timegrid.ParseOnBoundary(cfg.Scheduler.OnBoundary)
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		Mode:              mode,
		OnBoundary:        onBoundary,
		JoinThreshold:     cfg.Scheduler.JoinThreshold.Duration(),
		BoundaryTolerance: cfg.Scheduler.BoundaryTolerance.Duration(),
		MaxSleep:          cfg.Scheduler.MaxSleep.Duration(),
		CycleInterval:     cfg.Scheduler.CycleInterval.Duration(),
		LookupTimeout:     cfg.Scheduler.LookupTimeout.Duration(),
		PriceTimeout:      cfg.Scheduler.PriceTimeout.Duration(),
		GracePeriod:       cfg.Scheduler.GracePeriod.Duration(),
		Command:           cfg.Strategy.Command,
		Args:              cfg.Strategy.Args,
		Dir:               cfg.Strategy.Dir,
		Amount:            cfg.Amount,
	}, nil
}

func newLookup(ctx context.Context, cfg *config, logger *slog.Logger) (market.Lookup, func()) {
	timeout := cfg.Polymarket.Timeout.Duration()
	var clobClient *clob.Client
	if cfg.Polymarket.ClobURL != "" {
		clobClient = clob.New(cfg.Polymarket.ClobURL, timeout)
	}
	lookup := polymarket.NewLookup(gamma.New(cfg.Polymarket.GammaURL, timeout), clobClient, cfg.Polymarket.SlugPrefix, logger)

	var (
		backing cache.Store = cache.NewMemoryStore()
		closeFn             = func() {}
	)
	if cfg.Cache.Redis.Addr != "" {
		rs, err := cache.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password.Value(),
			DB:       cfg.Cache.Redis.DB,
		}, cfg.Cache.Redis.Prefix)
		if err != nil {
			logger.Warn("redis unavailable, caching markets in memory", "addr", cfg.Cache.Redis.Addr, "error", err)
		} else {
			backing = rs
			closeFn = func() { _ = rs.Close() }
		}
	}

	return &market.CachedLookup{
		Next:   lookup,
		Cache:  backing,
		TTL:    cfg.Cache.TTL.Duration(),
		Logger: logger.With("component", "market_cache"),
	}, closeFn
}

func newFeed(ctx context.Context, cfg *config, logger *slog.Logger, wg *sync.WaitGroup) pricefeed.Feed {
	var feeds pricefeed.Fallback
	if cfg.PriceFeed.Stream.Enabled {
		stream := pricefeed.NewStream(
			cfg.PriceFeed.Stream.URL,
			cfg.PriceFeed.Stream.Topic,
			cfg.PriceFeed.Stream.Symbol,
			cfg.PriceFeed.Stream.MaxAge.Duration(),
			logger,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream.Run(ctx)
		}()
		feeds = append(feeds, stream)
	}
	if cfg.PriceFeed.BinanceURL != "" {
		feeds = append(feeds, pricefeed.NewBinance(cfg.PriceFeed.BinanceURL, cfg.PriceFeed.Symbol, cfg.PriceFeed.Timeout.Duration()))
	}
	if len(feeds) == 1 {
		return feeds[0]
	}
	return feeds
}

func openStore(ctx context.Context, cfg *config) (*store.Store, error) {
	pool, err := store.NewPool(ctx, store.PoolConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password.Value(),
		Database: cfg.Database.Database,
		PoolSize: cfg.Database.PoolSize,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("couldn't connect to database: %w", err)
	}
	db := store.New(pool)
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// checkStrategy warns at startup when the strategy script is missing.
func checkStrategy(cfg *config, logger *slog.Logger) {
	for _, arg := range cfg.Strategy.Args {
		if filepath.Ext(arg) != ".py" {
			continue
		}
		path := arg
		if !filepath.IsAbs(path) && cfg.Strategy.Dir != "" {
			path = filepath.Join(cfg.Strategy.Dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			logger.Warn("strategy script not found, cycles will be skipped", "path", path)
		}
	}
}
