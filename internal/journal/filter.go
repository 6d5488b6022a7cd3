package journal

import (
	"fmt"
	"strings"
	"time"

	"fx-trade-journal/internal/models"

	"go.uber.org/zap"
)

// DateLayout is the layout of filter dates.
const DateLayout = "2006-01-02"

// Filter selects trades by pair, direction and earliest date.
type Filter struct {
	Pairs []string
	Types []models.TradeType
	// Since is inclusive. The zero value means no lower bound.
	Since time.Time
	// Log receives a warning for each trade skipped because its time does
	// not parse. Nil discards them.
	Log *zap.Logger
}

// Apply returns the trades matching f, in their original order. An empty
// Pairs or Types set matches nothing. With Since set, a trade whose time
// does not parse is excluded and reported to f.Log.
func (f Filter) Apply(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, 0, len(trades))
	if len(f.Pairs) == 0 || len(f.Types) == 0 {
		return out
	}

	pairs := make(map[string]struct{}, len(f.Pairs))
	for _, p := range f.Pairs {
		pairs[p] = struct{}{}
	}
	types := make(map[models.TradeType]struct{}, len(f.Types))
	for _, t := range f.Types {
		types[t] = struct{}{}
	}

	for _, trade := range trades {
		if _, ok := pairs[trade.Pair]; !ok {
			continue
		}
		if _, ok := types[trade.TradeType]; !ok {
			continue
		}
		if !f.Since.IsZero() {
			ts, err := time.ParseInLocation(models.TimeLayout, trade.Time, f.Since.Location())
			if err != nil {
				if f.Log != nil {
					f.Log.Warn("Skipping trade with malformed time",
						zap.Int64("trade_id", trade.ID), zap.String("time", trade.Time), zap.Error(err))
				}
				continue
			}
			if ts.Before(f.Since) {
				continue
			}
		}
		out = append(out, trade)
	}
	return out
}

// ParseFilter builds a Filter from user input. Pairs are upper-cased, types
// accept any casing and since is a YYYY-MM-DD date taken as midnight in loc.
func ParseFilter(pairs, types []string, since string, loc *time.Location) (Filter, error) {
	f := Filter{
		Pairs: make([]string, 0, len(pairs)),
		Types: make([]models.TradeType, 0, len(types)),
	}
	for _, p := range pairs {
		f.Pairs = append(f.Pairs, strings.ToUpper(strings.TrimSpace(p)))
	}
	for _, raw := range types {
		t, err := models.ParseTradeType(strings.TrimSpace(raw))
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %s", ErrValidation, err)
		}
		f.Types = append(f.Types, t)
	}
	if since = strings.TrimSpace(since); since != "" {
		ts, err := time.ParseInLocation(DateLayout, since, loc)
		if err != nil {
			return Filter{}, fmt.Errorf("%w: since must be YYYY-MM-DD: %s", ErrValidation, err)
		}
		f.Since = ts
	}
	return f, nil
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// DistinctPairs returns every pair present in trades, in first-seen order.
func DistinctPairs(trades []models.Trade) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, t := range trades {
		if _, ok := seen[t.Pair]; ok {
			continue
		}
		seen[t.Pair] = struct{}{}
		out = append(out, t.Pair)
	}
	return out
}

// AllTypes returns every trade type as strings.
func AllTypes() []string {
	out := make([]string, 0, len(models.TradeTypes))
	for _, t := range models.TradeTypes {
		out = append(out, string(t))
	}
	return out
}

// Selection is a filter as a user expresses it. A nil Pairs or Types means
// "everything"; a non-nil empty one selects nothing.
type Selection struct {
	Pairs []string
	Types []string
	Since string
}

// Resolve turns s into a Filter. Unset pairs default to the pairs present
// in trades, unset types to every trade type.
func (s Selection) Resolve(trades []models.Trade, loc *time.Location) (Filter, error) {
	pairs, types := s.Pairs, s.Types
	if pairs == nil {
		pairs = DistinctPairs(trades)
	}
	if types == nil {
		types = AllTypes()
	}
	return ParseFilter(pairs, types, s.Since, loc)
}

// Select resolves s against trades and applies it. Skipped trades are
// reported to log.
func (s Selection) Select(trades []models.Trade, loc *time.Location, log *zap.Logger) ([]models.Trade, error) {
	f, err := s.Resolve(trades, loc)
	if err != nil {
		return nil, err
	}
	f.Log = log
	return f.Apply(trades), nil
}
