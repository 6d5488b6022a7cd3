package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"fx-trade-journal/internal/client"
	"fx-trade-journal/internal/database"
	"fx-trade-journal/internal/journal"
	"fx-trade-journal/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errImportRemote = errors.New("import needs the local database; run it without --remote")

// backend is what the commands run against: the local database or a
// journal server.
type backend interface {
	Migrate(ctx context.Context) ([]string, error)
	Add(ctx context.Context, e journal.Entry) (*models.Trade, error)
	Import(ctx context.Context, entries []journal.Entry) (imported int, skipped int, err error)
	List(ctx context.Context, sel journal.Selection) ([]models.Trade, error)
	Get(ctx context.Context, id int64) (*models.Trade, error)
	UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) (*models.Trade, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, sel journal.Selection) (*journal.Report, error)
	Export(ctx context.Context, sel journal.Selection, w io.Writer) error
	Close() error
}

type localBackend struct {
	db    *gorm.DB
	store *journal.Store
	log   *zap.Logger
}

func (b *localBackend) Migrate(ctx context.Context) ([]string, error) {
	return b.store.Migrate(ctx)
}

func (b *localBackend) Add(ctx context.Context, e journal.Entry) (*models.Trade, error) {
	id, err := b.store.Insert(ctx, e)
	if err != nil {
		return nil, err
	}
	return b.store.Get(ctx, id)
}

// Import inserts entries in order. Entries the store rejects are skipped
// with a warning; any other failure stops the import.
func (b *localBackend) Import(ctx context.Context, entries []journal.Entry) (int, int, error) {
	imported, skipped := 0, 0
	for i, e := range entries {
		_, err := b.store.Insert(ctx, e)
		if errors.Is(err, journal.ErrValidation) {
			b.log.Warn("Skipping invalid row", zap.Int("row", i+1), zap.Error(err))
			skipped++
			continue
		}
		if err != nil {
			return imported, skipped, err
		}
		imported++
	}
	return imported, skipped, nil
}

func (b *localBackend) List(ctx context.Context, sel journal.Selection) ([]models.Trade, error) {
	all, err := b.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return sel.Select(all, b.store.Location(), b.log)
}

func (b *localBackend) Get(ctx context.Context, id int64) (*models.Trade, error) {
	return b.store.Get(ctx, id)
}

func (b *localBackend) UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) (*models.Trade, error) {
	if err := b.store.UpdateResult(ctx, id, result, pips); err != nil {
		return nil, err
	}
	return b.store.Get(ctx, id)
}

func (b *localBackend) Delete(ctx context.Context, id int64) error {
	return b.store.Delete(ctx, id)
}

func (b *localBackend) Stats(ctx context.Context, sel journal.Selection) (*journal.Report, error) {
	trades, err := b.List(ctx, sel)
	if err != nil {
		return nil, err
	}
	report := journal.BuildReport(trades, b.log)
	return &report, nil
}

func (b *localBackend) Export(ctx context.Context, sel journal.Selection, w io.Writer) error {
	trades, err := b.List(ctx, sel)
	if err != nil {
		return err
	}
	return journal.WriteCSV(w, trades)
}

func (b *localBackend) Close() error {
	return database.Close(b.db)
}

type remoteBackend struct {
	client client.Interface
}

// Migrate only checks the server is reachable; the server migrates its own
// database when it starts.
func (b *remoteBackend) Migrate(ctx context.Context) ([]string, error) {
	if err := b.client.Health(ctx); err != nil {
		return nil, err
	}
	return nil, nil
}

func (b *remoteBackend) Add(ctx context.Context, e journal.Entry) (*models.Trade, error) {
	return b.client.AddTrade(ctx, e)
}

func (b *remoteBackend) Import(context.Context, []journal.Entry) (int, int, error) {
	return 0, 0, errImportRemote
}

func (b *remoteBackend) List(ctx context.Context, sel journal.Selection) ([]models.Trade, error) {
	return b.client.ListTrades(ctx, sel)
}

func (b *remoteBackend) Get(ctx context.Context, id int64) (*models.Trade, error) {
	return b.client.GetTrade(ctx, id)
}

func (b *remoteBackend) UpdateResult(ctx context.Context, id int64, result *models.Result, pips *int64) (*models.Trade, error) {
	return b.client.UpdateResult(ctx, id, result, pips)
}

func (b *remoteBackend) Delete(ctx context.Context, id int64) error {
	return b.client.DeleteTrade(ctx, id)
}

func (b *remoteBackend) Stats(ctx context.Context, sel journal.Selection) (*journal.Report, error) {
	return b.client.Stats(ctx, sel)
}

func (b *remoteBackend) Export(ctx context.Context, sel journal.Selection, w io.Writer) error {
	return b.client.ExportCSV(ctx, sel, w)
}

func (b *remoteBackend) Close() error {
	return nil
}

// loadLocation resolves the journal's zone name.
func loadLocation(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown journal timezone %q: %w", name, err)
	}
	return loc, nil
}
