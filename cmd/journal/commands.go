package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// selectionFlags are the filter flags shared by list, stats and export.
type selectionFlags struct {
	pairs string
	types string
	since string
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.pairs, "pairs", "", "comma separated pairs (default: every pair in the journal)")
	cmd.Flags().StringVar(&f.types, "types", "", "comma separated trade types (default: Buy,Sell)")
	cmd.Flags().StringVar(&f.since, "since", "", "only trades on or after this date (YYYY-MM-DD)")
}

// selection leaves Pairs and Types nil unless the flag was given, so that
// --pairs "" selects nothing rather than everything.
func (f *selectionFlags) selection(cmd *cobra.Command) journal.Selection {
	var sel journal.Selection
	if cmd.Flags().Changed("pairs") {
		sel.Pairs = journal.SplitList(f.pairs)
	}
	if cmd.Flags().Changed("types") {
		sel.Types = journal.SplitList(f.types)
	}
	sel.Since = f.since
	return sel
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid trade id %q", arg)
	}
	return id, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the journal database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applied, err := a.backend.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Schema already up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", name)
			}
			return nil
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	var (
		pair, tradeType, result, reason string
		entry                           float64
		tp, sl, pips                    int64
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new trade",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e := journal.Entry{
				Pair:       pair,
				TradeType:  models.TradeType(tradeType),
				EntryPrice: entry,
				TP:         tp,
				SL:         sl,
				Reason:     reason,
			}
			if cmd.Flags().Changed("result") {
				r := models.Result(result)
				e.Result = &r
			}
			if cmd.Flags().Changed("pips") {
				e.Pips = &pips
			}

			trade, err := a.backend.Add(cmd.Context(), e)
			if err != nil {
				return fmt.Errorf("add trade: %w", err)
			}
			if trade == nil {
				return fmt.Errorf("add trade: saved trade could not be read back")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved trade #%d: %s %s at %s, RR %s\n",
				trade.ID, trade.TradeType, trade.Pair, trade.Time, strconv.FormatFloat(trade.RR, 'f', 2, 64))
			return nil
		},
	}
	cmd.Flags().StringVar(&pair, "pair", "", "currency pair, e.g. EURUSD")
	cmd.Flags().StringVar(&tradeType, "type", "", "Buy or Sell")
	cmd.Flags().Float64Var(&entry, "entry", 0, "entry price")
	cmd.Flags().Int64Var(&tp, "tp", 0, "take-profit distance in points")
	cmd.Flags().Int64Var(&sl, "sl", 0, "stop-loss distance in points")
	cmd.Flags().StringVar(&result, "result", "", "Win, Loss or Breakeven if already closed")
	cmd.Flags().Int64Var(&pips, "pips", 0, "pips gained or lost")
	cmd.Flags().StringVar(&reason, "reason", "", "why the trade was taken")
	_ = cmd.MarkFlagRequired("pair")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var flags selectionFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			trades, err := a.backend.List(cmd.Context(), flags.selection(cmd))
			if err != nil {
				return fmt.Errorf("list trades: %w", err)
			}
			return printTrades(cmd.OutOrStdout(), trades)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade-id>",
		Short: "Show one trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			trade, err := a.backend.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("get trade: %w", err)
			}
			if trade == nil {
				return fmt.Errorf("trade %d not found", id)
			}
			printTrade(cmd.OutOrStdout(), trade)
			return nil
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	var (
		result string
		pips   int64
	)
	cmd := &cobra.Command{
		Use:   "update <trade-id>",
		Short: "Set the outcome of a trade",
		Long: `Update overwrites the result and pips of a trade.
A flag that is left out clears the stored value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var (
				r *models.Result
				p *int64
			)
			if cmd.Flags().Changed("result") {
				parsed, err := models.ParseResult(result)
				if err != nil {
					return err
				}
				r = &parsed
			}
			if cmd.Flags().Changed("pips") {
				p = &pips
			}

			trade, err := a.backend.UpdateResult(cmd.Context(), id, r, p)
			if err != nil {
				return fmt.Errorf("update trade: %w", err)
			}
			if trade == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Trade #%d not found, nothing updated\n", id)
				return nil
			}
			printTrade(cmd.OutOrStdout(), trade)
			return nil
		},
	}
	cmd.Flags().StringVar(&result, "result", "", "Win, Loss or Breakeven")
	cmd.Flags().Int64Var(&pips, "pips", 0, "pips gained or lost")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade-id>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.backend.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("delete trade: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted trade #%d\n", id)
			return nil
		},
	}
}

func (a *app) exportCmd() *cobra.Command {
	var (
		flags selectionFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export trades as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("export: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := a.backend.Export(cmd.Context(), flags.selection(cmd), w); err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if out != "" {
				a.log.Info("Exported journal", zap.String("file", out))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import trades from a CSV export",
		Long: `Import reads a file in the export format and appends its rows as new
trades. Ids and RR are reassigned; the original times are kept. Rows that
fail validation are skipped with a warning. This includes rows with an empty
entry_price, which is how trades recorded before entry prices were tracked
are exported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			defer f.Close()

			entries, err := journal.ReadCSV(f, a.loc)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			imported, skipped, err := a.backend.Import(cmd.Context(), entries)
			if err != nil {
				return fmt.Errorf("import %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d trades, skipped %d\n", imported, skipped)
			return nil
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var flags selectionFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show trade counts per week and month and the outcome summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.backend.Stats(cmd.Context(), flags.selection(cmd))
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			return printReport(cmd.OutOrStdout(), report)
		},
	}
	flags.register(cmd)
	return cmd
}
