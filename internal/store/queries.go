package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const insertStrategyRun = `
INSERT INTO strategy_runs (id, interval_id, market_id, pid, command, btc_price, started_at, state)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING
`

type InsertStrategyRunParams struct {
	ID         string
	IntervalID int64
	MarketID   string
	PID        int32
	Command    string
	BTCPrice   float64
	StartedAt  time.Time
	State      string
}

func (q *Queries) InsertStrategyRun(ctx context.Context, arg InsertStrategyRunParams) error {
	_, err := q.db.Exec(ctx, insertStrategyRun,
		arg.ID,
		arg.IntervalID,
		arg.MarketID,
		arg.PID,
		arg.Command,
		arg.BTCPrice,
		arg.StartedAt,
		arg.State,
	)
	return err
}

const finishStrategyRun = `
UPDATE strategy_runs
SET finished_at = $2, state = $3, exit_code = $4, stderr_tail = $5
WHERE id = $1
`

type FinishStrategyRunParams struct {
	ID         string
	FinishedAt time.Time
	State      string
	ExitCode   int32
	StderrTail string
}

func (q *Queries) FinishStrategyRun(ctx context.Context, arg FinishStrategyRunParams) (int64, error) {
	tag, err := q.db.Exec(ctx, finishStrategyRun,
		arg.ID,
		arg.FinishedAt,
		arg.State,
		arg.ExitCode,
		arg.StderrTail,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const insertPriceSnapshot = `
INSERT INTO price_snapshots (time, source, price)
VALUES ($1, $2, $3)
`

type InsertPriceSnapshotParams struct {
	Time   time.Time
	Source string
	// Price in micro-units, see internal/price.
	Price int64
}

func (q *Queries) InsertPriceSnapshot(ctx context.Context, arg InsertPriceSnapshotParams) error {
	_, err := q.db.Exec(ctx, insertPriceSnapshot, arg.Time, arg.Source, arg.Price)
	return err
}

const insertTradeRecord = `
INSERT INTO trade_records (record_key, time, market_id, outcome, profit, profit_pct, exit_reason, record)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (record_key) DO NOTHING
`

type InsertTradeRecordParams struct {
	RecordKey  string
	Time       time.Time
	MarketID   string
	Outcome    string
	Profit     decimal.Decimal
	ProfitPct  float64
	ExitReason string
	Record     []byte
}

// InsertTradeRecord reports false when a record with the same key already exists.
func (q *Queries) InsertTradeRecord(ctx context.Context, arg InsertTradeRecordParams) (bool, error) {
	tag, err := q.db.Exec(ctx, insertTradeRecord,
		arg.RecordKey,
		arg.Time,
		arg.MarketID,
		arg.Outcome,
		arg.Profit,
		arg.ProfitPct,
		arg.ExitReason,
		arg.Record,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const listTradeRecords = `
SELECT record_key, time, record
FROM trade_records
ORDER BY time DESC
LIMIT $1
`

type TradeRecordRow struct {
	RecordKey string
	Time     time.Time
	Record   []byte
}

func (q *Queries) ListTradeRecords(ctx context.Context, limit int32) ([]TradeRecordRow, error) {
	rows, err := q.db.Query(ctx, listTradeRecords, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TradeRecordRow
	for rows.Next() {
		var i TradeRecordRow
		if err := rows.Scan(&i.RecordKey, &i.Time, &i.Record); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
