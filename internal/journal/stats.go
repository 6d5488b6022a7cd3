package journal

import (
	"sort"
	"time"

	"fx-trade-journal/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Bucket is one bar of a count chart.
type Bucket struct {
	Key   int `json:"key"`
	Count int `json:"count"`
}

// WeeklyCounts counts trades per ISO-8601 week number. Trades with an
// unparsable time are skipped and logged.
func WeeklyCounts(trades []models.Trade, log *zap.Logger) map[int]int {
	return countBy(trades, log, func(t time.Time) int {
		_, week := t.ISOWeek()
		return week
	})
}

// MonthlyCounts counts trades per calendar month (1-12). Trades with an
// unparsable time are skipped and logged.
func MonthlyCounts(trades []models.Trade, log *zap.Logger) map[int]int {
	return countBy(trades, log, func(t time.Time) int {
		return int(t.Month())
	})
}

func countBy(trades []models.Trade, log *zap.Logger, key func(time.Time) int) map[int]int {
	counts := make(map[int]int)
	for _, trade := range trades {
		// Only calendar fields are used, so the zone is irrelevant here.
		ts, err := time.Parse(models.TimeLayout, trade.Time)
		if err != nil {
			log.Warn("Skipping trade with malformed time",
				zap.Int64("trade_id", trade.ID), zap.String("time", trade.Time), zap.Error(err))
			continue
		}
		counts[key(ts)]++
	}
	return counts
}

// SortedBuckets orders a count mapping by key.
func SortedBuckets(counts map[int]int) []Bucket {
	out := make([]Bucket, 0, len(counts))
	for k, c := range counts {
		out = append(out, Bucket{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Summary holds outcome statistics for a set of trades.
type Summary struct {
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Breakevens  int     `json:"breakevens"`
	Open        int     `json:"open"`
	WinRate     float64 `json:"win_rate"`
	TotalPips   int64   `json:"total_pips"`
	AverageRR   float64 `json:"average_rr"`
}

// Summarize computes outcome statistics. WinRate is wins over trades that
// have a result.
func Summarize(trades []models.Trade) Summary {
	var s Summary
	rrSum := decimal.Zero
	for _, t := range trades {
		s.TotalTrades++
		rrSum = rrSum.Add(decimal.NewFromFloat(t.RR))
		if t.Pips != nil {
			s.TotalPips += *t.Pips
		}
		if t.Result == nil {
			s.Open++
			continue
		}
		switch *t.Result {
		case models.Win:
			s.Wins++
		case models.Loss:
			s.Losses++
		case models.Breakeven:
			s.Breakevens++
		default:
			s.Open++
		}
	}

	if closed := s.Wins + s.Losses + s.Breakevens; closed > 0 {
		s.WinRate = decimal.NewFromInt(int64(s.Wins)).
			DivRound(decimal.NewFromInt(int64(closed)), 4).
			InexactFloat64()
	}
	if s.TotalTrades > 0 {
		s.AverageRR = rrSum.
			DivRound(decimal.NewFromInt(int64(s.TotalTrades)), 2).
			InexactFloat64()
	}
	return s
}

// Report bundles the chart data and summary for a set of trades.
type Report struct {
	Weekly  []Bucket `json:"weekly"`
	Monthly []Bucket `json:"monthly"`
	Summary Summary  `json:"summary"`
}

// BuildReport computes weekly and monthly counts and the outcome summary.
func BuildReport(trades []models.Trade, log *zap.Logger) Report {
	return Report{
		Weekly:  SortedBuckets(WeeklyCounts(trades, log)),
		Monthly: SortedBuckets(MonthlyCounts(trades, log)),
		Summary: Summarize(trades),
	}
}
