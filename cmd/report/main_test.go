package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daszybak/interval_trader/internal/trades"
)

func TestPrintReport(t *testing.T) {
	records := []trades.Record{
		{Timestamp: "2025-01-10T10:29:58", Outcome: "Up", Profit: 0.5, ProfitPct: 10, ExitReason: "take_profit"},
		{Timestamp: "2025-01-10T10:14:01", Outcome: "Down", Profit: -0.25, ProfitPct: -5, ExitReason: "stop_loss"},
		{Timestamp: "", Outcome: "Up", Profit: 1},
	}

	var buf bytes.Buffer
	printReport(&buf, records, 2, time.UTC)

	assert.Equal(t, `trades:       3
wins/losses:  2/1
win rate:     66.7%
total profit: +1.25
avg profit:   +0.42
best/worst:   +1.00/-0.25
  Down     1 trades, 0 wins, -0.25
  Up       2 trades, 2 wins, +1.50
recent:
  1. 2025-01-10 10:29:58 Up +0.50 (+10.0%) take_profit
  2. 2025-01-10 10:14:01 Down -0.25 (-5.0%) stop_loss
`, buf.String())
}

func TestPrintReportEmpty(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, nil, 5, time.UTC)
	assert.Equal(t, "trades:       0\n", buf.String())
}

func TestReadConfig(t *testing.T) {
	cfg, err := readConfig("")
	require.NoError(t, err)
	assert.Equal(t, trades.DefaultDir, cfg.TradesDir)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trades_dir: /tmp/trades\ndatabase:\n  enabled: true\n"), 0o644))
	_, err = readConfig(path)
	assert.ErrorContains(t, err, "database.host")
}
