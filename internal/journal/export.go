package journal

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"fx-trade-journal/internal/models"
)

// CSVHeader is the column order of exported journals.
var CSVHeader = []string{"id", "pair", "trade_type", "time", "entry_price", "tp", "sl", "rr", "result", "pips", "reason"}

// WriteCSV writes trades with a header row. Absent optional values are
// written as empty cells.
func WriteCSV(w io.Writer, trades []models.Trade) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return err
	}
	for _, t := range trades {
		record := []string{
			strconv.FormatInt(t.ID, 10),
			t.Pair,
			string(t.TradeType),
			t.Time,
			"",
			strconv.FormatInt(t.TP, 10),
			strconv.FormatInt(t.SL, 10),
			formatFloat(t.RR),
			"",
			"",
			t.Reason,
		}
		if t.EntryPrice != nil {
			record[4] = formatFloat(*t.EntryPrice)
		}
		if t.Result != nil {
			record[8] = string(*t.Result)
		}
		if t.Pips != nil {
			record[9] = strconv.FormatInt(*t.Pips, 10)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadCSV parses a journal export back into entries. Columns are matched
// by header name; id and rr are ignored because the store assigns them.
// Each returned entry keeps its original time.
func ReadCSV(r io.Reader, loc *time.Location) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{"pair", "trade_type", "time", "tp", "sl"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("%w: csv is missing column %q", ErrValidation, required)
		}
	}

	var entries []Entry
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		entry, err := parseRecord(record, index, loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseRecord(record []string, index map[string]int, loc *time.Location) (Entry, error) {
	get := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var e Entry
	var err error
	e.Pair = get("pair")
	e.TradeType = models.TradeType(get("trade_type"))
	e.Reason = get("reason")

	if e.Time, err = time.ParseInLocation(models.TimeLayout, get("time"), loc); err != nil {
		return Entry{}, fmt.Errorf("%w: bad time: %s", ErrValidation, err)
	}
	if v := get("entry_price"); v != "" {
		if e.EntryPrice, err = strconv.ParseFloat(v, 64); err != nil {
			return Entry{}, fmt.Errorf("%w: bad entry_price: %s", ErrValidation, err)
		}
	}
	if e.TP, err = parseInt(get("tp")); err != nil {
		return Entry{}, fmt.Errorf("%w: bad tp: %s", ErrValidation, err)
	}
	if e.SL, err = parseInt(get("sl")); err != nil {
		return Entry{}, fmt.Errorf("%w: bad sl: %s", ErrValidation, err)
	}
	if v := get("result"); v != "" {
		result := models.Result(v)
		e.Result = &result
	}
	if v := get("pips"); v != "" {
		pips, err := parseInt(v)
		if err != nil {
			return Entry{}, fmt.Errorf("%w: bad pips: %s", ErrValidation, err)
		}
		e.Pips = &pips
	}
	return e, nil
}

// parseInt also accepts "25.0", which is how pandas writes nullable
// integer columns.
func parseInt(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int64(f), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
