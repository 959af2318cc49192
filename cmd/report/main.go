package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daszybak/interval_trader/internal/store"
	"github.com/daszybak/interval_trader/internal/trades"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	dir := flag.String("dir", "", "trade records directory (overrides config)")
	latest := flag.Int("latest", 5, "number of recent trades to list")
	today := flag.Bool("today", false, "summarize only today's trades")
	sync := flag.Bool("sync", false, "import trade files into the database")
	fromDB := flag.Bool("db", false, "read trades from the database instead of files")
	flag.Parse()

	cfg, err := readConfig(*configPath)
	if err != nil {
		log.Fatalf("Couldn't read config: %v", err)
	}
	if *dir != "" {
		cfg.TradesDir = *dir
	}
	loc, err := time.LoadLocation(cfg.Timezone.Local)
	if err != nil {
		log.Fatalf("Couldn't load timezone %s: %v", cfg.Timezone.Local, err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	records, err := trades.NewDir(cfg.TradesDir).Load()
	if err != nil {
		log.Printf("Some trade files were skipped: %v", err)
	}

	if *sync || *fromDB {
		if !cfg.Database.Enabled {
			log.Fatalf("-sync and -db need database.enabled in the config")
		}
		db, err := openStore(ctx, cfg)
		if err != nil {
			log.Fatalf("Couldn't open database: %v", err)
		}
		defer db.Close()

		if *sync {
			n, err := db.ImportTrades(ctx, records, loc)
			if err != nil {
				log.Fatalf("Couldn't import trades: %v", err)
			}
			log.Printf("Imported %d new trades", n)
		}
		if *fromDB {
			records, err = db.RecentTrades(ctx, 10_000)
			if err != nil {
				log.Fatalf("Couldn't read trades: %v", err)
			}
		}
	}

	if *today {
		records = trades.OnDay(records, time.Now(), loc)
	}
	printReport(os.Stdout, records, *latest, loc)
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
		return nil, err
	}
	db := store.New(pool)
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// printReport writes the summary and the latest n records, newest first.
func printReport(w io.Writer, records []trades.Record, n int, loc *time.Location) {
	s := trades.Summarize(records)

	fmt.Fprintf(w, "trades:       %d\n", s.Trades)
	if s.Trades == 0 {
		return
	}
	fmt.Fprintf(w, "wins/losses:  %d/%d\n", s.Wins, s.Losses)
	fmt.Fprintf(w, "win rate:     %s%%\n", s.WinRate.StringFixed(1))
	fmt.Fprintf(w, "total profit: %s\n", signed(s.TotalProfit.StringFixed(2)))
	fmt.Fprintf(w, "avg profit:   %s\n", signed(s.AvgProfit.StringFixed(2)))
	fmt.Fprintf(w, "best/worst:   %s/%s\n", signed(s.Best.StringFixed(2)), signed(s.Worst.StringFixed(2)))
	for _, outcome := range s.Outcomes() {
		o := s.ByOutcome[outcome]
		fmt.Fprintf(w, "  %-8s %d trades, %d wins, %s\n", outcome, o.Trades, o.Wins, signed(o.Profit.StringFixed(2)))
	}

	if n <= 0 {
		return
	}
	fmt.Fprintln(w, "recent:")
	for i, r := range records {
		if i == n {
			break
		}
		when := "unknown"
		if t, err := r.Time(loc); err == nil {
			when = t.Format(time.DateTime)
		}
		outcome := r.Outcome
		if outcome == "" {
			outcome = "unknown"
		}
		fmt.Fprintf(w, "  %d. %s %s %+.2f (%+.1f%%) %s\n", i+1, when, outcome, r.Profit, r.ProfitPct, r.ExitReason)
	}
}

func signed(s string) string {
	if len(s) > 0 && s[0] != '-' {
		return "+" + s
	}
	return s
}
