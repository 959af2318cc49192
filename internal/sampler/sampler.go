// Package sampler records the reference price on a cron schedule, as a CSV
// history and optionally in the database.
package sampler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/daszybak/interval_trader/internal/price"
	"github.com/daszybak/interval_trader/internal/pricefeed"
)

const (
	// Every quarter hour at second 0.
	DefaultSchedule = "0 */15 * * * *"
	DefaultCSVPath  = "data/btc_15min_prices.csv"
	DefaultTimeout  = 10 * time.Second
)

var csvHeader = []string{"timestamp", "datetime", "price", "source"}

// Recorder stores a sample somewhere other than the CSV file.
type Recorder interface {
	RecordPrice(ctx context.Context, s pricefeed.Sample) error
}

type Config struct {
	Schedule string
	CSVPath  string
	Timeout  time.Duration
	// Location formats the datetime column.
	Location *time.Location
}

type Sampler struct {
	cfg      Config
	feed     pricefeed.Feed
	recorder Recorder
	log      *slog.Logger
	cron     *cron.Cron

	mu sync.Mutex
}

// New validates the schedule. recorder may be nil.
func New(cfg Config, feed pricefeed.Feed, recorder Recorder, log *slog.Logger) (*Sampler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.CSVPath == "" {
		cfg.CSVPath = DefaultCSVPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	log = log.With("component", "sampler")
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(cfg.Location),
		cron.WithLogger(cronLogger{log}),
		cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
	)
	s := &Sampler{cfg: cfg, feed: feed, recorder: recorder, log: log, cron: c}
	if _, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).Parse(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid sampler schedule %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start runs the schedule until ctx is cancelled. Sampling never blocks callers;
// failures are logged and the next tick proceeds.
func (s *Sampler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if err := s.SampleOnce(ctx); err != nil {
			s.log.Error("couldn't record price", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("couldn't schedule sampler: %w", err)
	}

	s.log.Info("started price sampler", "schedule", s.cfg.Schedule, "csv", s.cfg.CSVPath)
	s.cron.Start()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("price sampler stopped")
	return nil
}

// SampleOnce takes one sample and writes it to every sink.
func (s *Sampler) SampleOnce(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	sample, err := s.feed.Current(fetchCtx)
	cancel()
	if err != nil {
		return err
	}

	var errs []error
	if err := s.appendCSV(sample); err != nil {
		errs = append(errs, err)
	}
	if s.recorder != nil {
		if err := s.recorder.RecordPrice(ctx, sample); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		s.log.Info("recorded price", "price", sample.Value, "source", sample.Source)
	}
	return errors.Join(errs...)
}

func (s *Sampler) appendCSV(sample pricefeed.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.cfg.CSVPath), 0o755); err != nil {
		return fmt.Errorf("couldn't create price dir: %w", err)
	}
	f, err := os.OpenFile(s.cfg.CSVPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("couldn't open price file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("couldn't stat price file: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("couldn't write header: %w", err)
		}
	}
	row := []string{
		strconv.FormatInt(sample.ObservedAt.Unix(), 10),
		sample.ObservedAt.In(s.cfg.Location).Format(time.DateTime),
		price.FromFloat(sample.Value).String(),
		sample.Source,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("couldn't write price row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("couldn't flush price file: %w", err)
	}
	return nil
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
