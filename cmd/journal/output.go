package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"
)

func optional[T any](v *T, format func(T) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func formatPrice(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
func formatRR(v float64) string    { return strconv.FormatFloat(v, 'f', 2, 64) }
func formatPips(v int64) string    { return strconv.FormatInt(v, 10) }
func formatResult(r models.Result) string {
	if r == "" {
		return "-"
	}
	return string(r)
}

func printTrades(w io.Writer, trades []models.Trade) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "No trades")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tPAIR\tTYPE\tENTRY\tTP\tSL\tRR\tRESULT\tPIPS\tREASON")
	for _, t := range trades {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			t.ID, t.Time, t.Pair, t.TradeType,
			optional(t.EntryPrice, formatPrice),
			t.TP, t.SL, formatRR(t.RR),
			optional(t.Result, formatResult),
			optional(t.Pips, formatPips),
			t.Reason)
	}
	return tw.Flush()
}

func printTrade(w io.Writer, t *models.Trade) {
	fmt.Fprintf(w, "Trade #%d\n", t.ID)
	fmt.Fprintf(w, "  Time:    %s\n", t.Time)
	fmt.Fprintf(w, "  Pair:    %s %s\n", t.Pair, t.TradeType)
	fmt.Fprintf(w, "  Entry:   %s\n", optional(t.EntryPrice, formatPrice))
	fmt.Fprintf(w, "  TP/SL:   %d / %d (RR %s)\n", t.TP, t.SL, formatRR(t.RR))
	fmt.Fprintf(w, "  Result:  %s\n", optional(t.Result, formatResult))
	fmt.Fprintf(w, "  Pips:    %s\n", optional(t.Pips, formatPips))
	if t.Reason != "" {
		fmt.Fprintf(w, "  Reason:  %s\n", t.Reason)
	}
}

func printReport(w io.Writer, r *journal.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "WEEK\tTRADES")
	for _, b := range r.Weekly {
		fmt.Fprintf(tw, "%d\t%d\n", b.Key, b.Count)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MONTH\tTRADES")
	for _, b := range r.Monthly {
		fmt.Fprintf(tw, "%d\t%d\n", b.Key, b.Count)
	}
	fmt.Fprintln(tw)

	s := r.Summary
	fmt.Fprintf(tw, "Total\t%d\n", s.TotalTrades)
	fmt.Fprintf(tw, "Wins / Losses / Breakeven / Open\t%d / %d / %d / %d\n", s.Wins, s.Losses, s.Breakevens, s.Open)
	fmt.Fprintf(tw, "Win rate\t%s%%\n", strconv.FormatFloat(s.WinRate*100, 'f', 1, 64))
	fmt.Fprintf(tw, "Total pips\t%d\n", s.TotalPips)
	fmt.Fprintf(tw, "Average RR\t%s\n", formatRR(s.AverageRR))
	return tw.Flush()
}
