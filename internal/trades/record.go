// Package trades reads and writes per-trade outcome files produced by
// strategies and summarizes them.
package trades

import (
	"fmt"
	"time"
)

// Record is one closed trade. Strategies write it; only Timestamp, Outcome and
// Profit are required for reporting.
type Record struct {
	Timestamp       string  `json:"timestamp"`
	MarketID        string  `json:"market_id"`
	Outcome         string  `json:"outcome"`
	Interval        string  `json:"interval,omitempty"`
	EntryTime       string  `json:"entry_time,omitempty"`
	ExitTime        string  `json:"exit_time,omitempty"`
	EntryPrice      float64 `json:"entry_price"`
	ExitPrice       float64 `json:"exit_price"`
	Shares          float64 `json:"shares"`
	Amount          float64 `json:"amount"`
	Profit          float64 `json:"profit"`
	ProfitPct       float64 `json:"profit_pct"`
	ExitReason      string  `json:"exit_reason,omitempty"`
	BTCEntryPrice   float64 `json:"btc_entry_price,omitempty"`
	BTCExitPrice    float64 `json:"btc_exit_price,omitempty"`
	Direction       string  `json:"direction,omitempty"`
	DurationMinutes float64 `json:"duration_minutes,omitempty"`
}

// Strategies write naive ISO timestamps in local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.DateTime,
}

// Time parses Timestamp, reading zone-less values in loc.
func (r Record) Time(loc *time.Location) (time.Time, error) {
	return parseTimestamp(r.Timestamp, loc)
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("couldn't parse timestamp %q", s)
}

// Won reports whether the trade closed in profit.
func (r Record) Won() bool {
	return r.Profit > 0
}
