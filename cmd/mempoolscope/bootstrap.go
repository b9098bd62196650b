package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"mempoolScope/internal/chain"
	"mempoolScope/internal/config"
	"mempoolScope/internal/indexer"
	"mempoolScope/internal/registry"
	"mempoolScope/internal/storage"
	"mempoolScope/internal/storage/postgres"
	"mempoolScope/internal/storage/sqlite"
)

// poolBackend is the configured pool store with its checkpoint.
type poolBackend struct {
	store      storage.PoolStore
	checkpoint indexer.Checkpointer
	name       string
	close      func()
}

// openPoolBackend picks Postgres, then SQLite, then the JSONL file.
func openPoolBackend(ctx context.Context, cfg config.Config) (*poolBackend, error) {
	fileCheckpoint := indexer.NewCheckpointStore(cfg.Checkpoint, cfg.CheckpointEnabled)

	switch {
	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		backend := &poolBackend{store: store, name: "postgres", close: store.Close}
		if cfg.CheckpointEnabled {
			backend.checkpoint = &indexer.DBCheckpointStore{Store: store, Name: "pool-sync"}
		}
		return backend, nil
	case cfg.SQLitePath != "":
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &poolBackend{
			store:      store,
			checkpoint: fileCheckpoint,
			name:       "sqlite",
			close:      func() { _ = store.Close() },
		}, nil
	default:
		return &poolBackend{
			store:      storage.NewJsonlStorage(cfg.PoolsOut),
			checkpoint: fileCheckpoint,
			name:       "jsonl",
			close:      func() {},
		}, nil
	}
}

func runPoolSync(ctx context.Context, cfg config.Config, client *chain.Client, backend *poolBackend, logger *zap.Logger) (indexer.SyncResult, error) {
	factories, err := indexer.ParseFactories(cfg.Factories)
	if err != nil {
		return indexer.SyncResult{}, err
	}
	if len(factories) == 0 {
		return indexer.SyncResult{}, fmt.Errorf("factory list is required")
	}

	logger.Info("pool sync start",
		zap.String("store", backend.name),
		zap.Int("factories", len(factories)),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
	)

	runner, err := indexer.NewRunner(indexer.SyncConfig{
		Factories:    factories,
		ToBlock:      cfg.ToBlock,
		BatchSize:    cfg.BatchSize,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, client, backend.store, backend.checkpoint, logger.Named("sync"))
	if err != nil {
		return indexer.SyncResult{}, err
	}
	return runner.Run(ctx)
}

// loadRegistry reads the pool store and the optional seed file. client may be
// nil, in which case seed entries must list their tokens.
func loadRegistry(ctx context.Context, cfg config.Config, client *chain.Client, backend *poolBackend, logger *zap.Logger) (*registry.Registry, error) {
	sources := []registry.Source{backend.store}
	if cfg.PoolsSeed != "" {
		var seed *storage.SeedFile
		if client != nil {
			seed = storage.NewSeedFile(cfg.PoolsSeed, client, logger)
		} else {
			seed = storage.NewSeedFile(cfg.PoolsSeed, nil, logger)
		}
		sources = append(sources, seed)
	}
	reg, err := registry.Load(ctx, logger.Named("registry"), sources...)
	if err != nil {
		return nil, fmt.Errorf("load pool registry: %w", err)
	}
	return reg, nil
}
