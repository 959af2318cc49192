package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/daszybak/interval_trader/internal/price"
	"github.com/daszybak/interval_trader/internal/pricefeed"
	"github.com/daszybak/interval_trader/internal/supervisor"
	"github.com/daszybak/interval_trader/internal/trades"
)

// RunRecorder writes strategy run lifecycle rows.
type RunRecorder struct {
	q   *Queries
	now func() time.Time
}

func NewRunRecorder(q *Queries) *RunRecorder {
	return &RunRecorder{q: q, now: time.Now}
}

func (r *RunRecorder) RunStarted(ctx context.Context, run *supervisor.Run) error {
	err := r.q.InsertStrategyRun(ctx, StartedRunParams(run))
	if err != nil {
		return fmt.Errorf("insert strategy run %s: %w", run.ID, err)
	}
	return nil
}

func (r *RunRecorder) RunFinished(ctx context.Context, run *supervisor.Run, st supervisor.Status) error {
	_, err := r.q.FinishStrategyRun(ctx, FinishStrategyRunParams{
		ID:         run.ID,
		FinishedAt: r.now(),
		State:      st.State.String(),
		ExitCode:   int32(st.ExitCode),
		StderrTail: st.Stderr,
	})
	if err != nil {
		return fmt.Errorf("finish strategy run %s: %w", run.ID, err)
	}
	return nil
}

func StartedRunParams(run *supervisor.Run) InsertStrategyRunParams {
	return InsertStrategyRunParams{
		ID:         run.ID,
		IntervalID: int64(run.Interval),
		MarketID:   run.Market.ID,
		PID:        int32(run.PID),
		Command:    strings.Join(run.Command, " "),
		BTCPrice:   run.Price.Value,
		StartedAt:  run.StartedAt,
		State:      supervisor.Running.String(),
	}
}

// PriceRecorder stores sampled prices.
type PriceRecorder struct {
	q *Queries
}

func NewPriceRecorder(q *Queries) *PriceRecorder {
	return &PriceRecorder{q: q}
}

func (r *PriceRecorder) RecordPrice(ctx context.Context, s pricefeed.Sample) error {
	err := r.q.InsertPriceSnapshot(ctx, InsertPriceSnapshotParams{
		Time:   s.ObservedAt,
		Source: s.Source,
		Price:  int64(price.FromFloat(s.Value)),
	})
	if err != nil {
		return fmt.Errorf("insert price snapshot: %w", err)
	}
	return nil
}

// TradeRecordParams maps a trade file onto a trade_records row. The key is the
// record's timestamp and market, so re-importing a directory is idempotent.
func TradeRecordParams(rec trades.Record, loc *time.Location) (InsertTradeRecordParams, error) {
	t, err := rec.Time(loc)
	if err != nil {
		return InsertTradeRecordParams{}, err
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return InsertTradeRecordParams{}, fmt.Errorf("encode trade: %w", err)
	}
	return InsertTradeRecordParams{
		RecordKey:  rec.Timestamp + "|" + rec.MarketID,
		Time:       t,
		MarketID:   rec.MarketID,
		Outcome:    rec.Outcome,
		Profit:     decimal.NewFromFloat(rec.Profit),
		ProfitPct:  rec.ProfitPct,
		ExitReason: rec.ExitReason,
		Record:     raw,
	}, nil
}

// ImportTrades inserts every record in one transaction and returns how many were new.
func (s *Store) ImportTrades(ctx context.Context, records []trades.Record, loc *time.Location) (int, error) {
	inserted := 0
	err := s.WithTx(ctx, func(q *Queries) error {
		for _, rec := range records {
			arg, err := TradeRecordParams(rec, loc)
			if err != nil {
				return err
			}
			ok, err := q.InsertTradeRecord(ctx, arg)
			if err != nil {
				return fmt.Errorf("insert trade %s: %w", arg.RecordKey, err)
			}
			if ok {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// RecentTrades returns up to limit stored trades, newest first.
func (s *Store) RecentTrades(ctx context.Context, limit int) ([]trades.Record, error) {
	rows, err := s.ListTradeRecords(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list trade records: %w", err)
	}
	out := make([]trades.Record, 0, len(rows))
	for _, row := range rows {
		var rec trades.Record
		if err := json.Unmarshal(row.Record, &rec); err != nil {
			return nil, fmt.Errorf("decode trade %s: %w", row.RecordKey, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
