package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"fx-trade-journal/internal/config"
	"fx-trade-journal/internal/database"
	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/logger"
	"fx-trade-journal/internal/server"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Options{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	loc, err := time.LoadLocation(cfg.Journal.Timezone)
	if err != nil {
		log.Fatal("Unknown journal timezone", zap.String("timezone", cfg.Journal.Timezone), zap.Error(err))
	}

	// Connect to the database
	db, err := database.NewDatabase(cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	store := journal.NewStore(db, log, journal.WithLocation(loc))
	if err := store.Initialize(context.Background()); err != nil {
		log.Fatal("Failed to initialize journal", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	srv := server.New(cfg.Server, cfg.Journal.Pairs, store, log)
	srv.Start()

	sigchan := make(chan os.Signal, 1)
	signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
	<-sigchan
	log.Info("Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		log.Error("Failed to stop server cleanly", zap.Error(err))
	}
	log.Info("Journal server has been shut down.")
}
