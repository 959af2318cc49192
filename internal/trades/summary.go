package trades

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type OutcomeStats struct {
	Trades int
	Wins   int
	Profit decimal.Decimal
}

type Summary struct {
	Trades      int
	Wins        int
	Losses      int
	TotalProfit decimal.Decimal
	AvgProfit   decimal.Decimal
	Best        decimal.Decimal
	Worst       decimal.Decimal
	// WinRate is a percentage.
	WinRate   decimal.Decimal
	ByOutcome map[string]OutcomeStats
}

// Summarize aggregates profits with decimal arithmetic so totals do not drift.
func Summarize(records []Record) Summary {
	s := Summary{ByOutcome: map[string]OutcomeStats{}}
	if len(records) == 0 {
		return s
	}

	for i, r := range records {
		p := decimal.NewFromFloat(r.Profit)
		s.Trades++
		s.TotalProfit = s.TotalProfit.Add(p)
		if r.Won() {
			s.Wins++
		} else {
			s.Losses++
		}
		if i == 0 || p.GreaterThan(s.Best) {
			s.Best = p
		}
		if i == 0 || p.LessThan(s.Worst) {
			s.Worst = p
		}

		outcome := r.Outcome
		if outcome == "" {
			outcome = "unknown"
		}
		o := s.ByOutcome[outcome]
		o.Trades++
		o.Profit = o.Profit.Add(p)
		if r.Won() {
			o.Wins++
		}
		s.ByOutcome[outcome] = o
	}

	n := decimal.NewFromInt(int64(s.Trades))
	s.AvgProfit = s.TotalProfit.Div(n).Round(4)
	s.WinRate = decimal.NewFromInt(int64(s.Wins)).Mul(decimal.NewFromInt(100)).Div(n).Round(2)
	return s
}

// OnDay keeps the records whose timestamp falls on day's calendar date in loc.
// Records with unparseable timestamps are dropped.
func OnDay(records []Record, day time.Time, loc *time.Location) []Record {
	y, m, d := day.In(loc).Date()
	var out []Record
	for _, r := range records {
		t, err := r.Time(loc)
		if err != nil {
			continue
		}
		ty, tm, td := t.In(loc).Date()
		if ty == y && tm == m && td == d {
			out = append(out, r)
		}
	}
	return out
}

// Outcomes returns the outcome labels of s in sorted order.
func (s Summary) Outcomes() []string {
	out := make([]string, 0, len(s.ByOutcome))
	for k := range s.ByOutcome {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
