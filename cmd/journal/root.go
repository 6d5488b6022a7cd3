package main

import (
	"fmt"
	"io"
	"time"

	"fx-trade-journal/internal/client"
	"fx-trade-journal/internal/config"
	"fx-trade-journal/internal/database"
	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries what every command needs once the root flags are parsed.
type app struct {
	configDir string
	remote    bool

	cfg     config.Config
	log     *zap.Logger
	loc     *time.Location
	backend backend
}

func newRootCmd(a *app, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:   "journal",
		Short: "Record and review FX trades",
		Long: `Journal keeps a record of FX trades in a local SQLite database.

Every trade stores its pair, direction, entry, take-profit and stop-loss
distances and the reason it was taken. The reward/risk ratio is computed
on entry; the outcome and pips can be filled in once the trade closes.

With --remote the commands talk to a running journal server instead of
opening the database directly.

Examples:
  journal add --pair EURUSD --type Buy --entry 1.0842 --tp 50 --sl 25 --reason "breakout"
  journal update 3 --result Win --pips 25
  journal list --pairs EURUSD,GBPUSD --since 2025-01-01
  journal stats
  journal export --out trades.csv`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&a.configDir, "config", "./configs", "directory containing config.yml")
	root.PersistentFlags().BoolVar(&a.remote, "remote", false, "use the journal server at client.base_url instead of the local database")

	root.AddCommand(
		a.migrateCmd(),
		a.addCmd(),
		a.listCmd(),
		a.showCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.statsCmd(),
	)
	return root
}

// open loads configuration and connects the backend. The local schema is
// brought up to date first, except for migrate which reports the steps itself.
func (a *app) open(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configDir)
	if err != nil {
		return fmt.Errorf("could not load config: %w", err)
	}
	a.cfg = cfg

	log, err := logger.New(logger.Options{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("could not initialize logger: %w", err)
	}
	a.log = log

	a.loc, err = loadLocation(cfg.Journal.Timezone)
	if err != nil {
		return err
	}

	if a.remote {
		a.backend = &remoteBackend{client: client.NewClient(&cfg.Client, log)}
		return nil
	}

	db, err := database.NewDatabase(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("could not open journal database: %w", err)
	}
	store := journal.NewStore(db, log, journal.WithLocation(a.loc))
	a.backend = &localBackend{db: db, store: store, log: log.Named("cli")}

	if cmd.Name() != "migrate" {
		if err := store.Initialize(cmd.Context()); err != nil {
			return fmt.Errorf("could not initialize journal: %w", err)
		}
	}
	return nil
}

func (a *app) close() {
	if a.backend != nil {
		if err := a.backend.Close(); err != nil && a.log != nil {
			a.log.Warn("Failed to close journal", zap.Error(err))
		}
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}
