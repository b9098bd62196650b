package storage

import (
	"context"

	"mempoolScope/internal/model"
)

// PoolWriter is a sink for pool records discovered by the factory sync.
type PoolWriter interface {
	PutPoolBatch(ctx context.Context, pools []model.Pool) error
}

// PoolReader returns all stored pool records.
type PoolReader interface {
	LoadPools(ctx context.Context) ([]model.Pool, error)
}

// PoolStore reads and writes pool records.
type PoolStore interface {
	PoolWriter
	PoolReader
}
