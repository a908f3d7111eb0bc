package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/caresearch/internal/config"
	"github.com/dshills/caresearch/internal/indexer"
	"github.com/dshills/caresearch/internal/planner"
	"github.com/dshills/caresearch/internal/records"
	"github.com/dshills/caresearch/internal/searcher"
	"github.com/dshills/caresearch/internal/sqlitedb"
	"github.com/dshills/caresearch/internal/storage"
	"github.com/dshills/caresearch/internal/storage/postgres"
)

// app holds the wired components shared by every command
type app struct {
	cfg      config.Config
	log      *zap.Logger
	store    *storage.SQLStore
	index    *indexer.Coordinator
	records  *records.Service
	searcher *searcher.Searcher
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	store, err := openStore(ctx, cfg.Records)
	if err != nil {
		return nil, err
	}

	index, err := indexer.Open(ctx, cfg.Index.Dir, log)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	srch := searcher.New(store, planner.New(index, cfg.Search.MaxPageSize), searcher.Options{
		MaxPageSize: cfg.Search.MaxPageSize,
		CacheSize:   cfg.Search.CacheSize,
		CacheTTL:    cfg.Search.CacheTTL(),
		Generation:  index.Generation,
		Logger:      log,
	})

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		index:    index,
		records:  records.New(store, index, log),
		searcher: srch,
	}, nil
}

func openStore(ctx context.Context, cfg config.RecordsConfig) (*storage.SQLStore, error) {
	switch cfg.Driver {
	case "postgres":
		store, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres record store: %w", err)
		}
		return store, nil
	default:
		if cfg.Path != sqlitedb.MemoryPath {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
				return nil, fmt.Errorf("failed to create record store directory: %w", err)
			}
		}
		store, err := storage.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite record store: %w", err)
		}
		return store, nil
	}
}

// Close releases the index and the record store
func (a *app) Close() error {
	return errors.Join(a.index.Close(), a.store.Close())
}
