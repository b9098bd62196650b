package registry

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mempoolScope/internal/model"
)

// Registry is the set of known pools keyed by address. Pools are added at
// startup and only read afterwards.
type Registry struct {
	mu         sync.RWMutex
	pools      map[common.Address]Pool
	duplicates int
}

func New() *Registry {
	return &Registry{pools: make(map[common.Address]Pool)}
}

// Add inserts a pool. A pool whose address is already registered is rejected
// and the first entry is kept.
func (r *Registry) Add(pool Pool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pools[pool.Address]; ok {
		r.duplicates++
		return false
	}
	r.pools[pool.Address] = pool
	return true
}

// Get returns the pool registered at address.
func (r *Registry) Get(address common.Address) (Pool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.pools[address]
	return pool, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pools)
}

// Duplicates returns how many inserts were rejected as duplicates.
func (r *Registry) Duplicates() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.duplicates
}

// PoolsWith returns every pool holding token, ordered by address.
func (r *Registry) PoolsWith(token common.Address) []Pool {
	r.mu.RLock()
	out := make([]Pool, 0)
	for _, pool := range r.pools {
		if pool.Contains(token) {
			out = append(out, pool)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// Source provides stored pool records.
type Source interface {
	LoadPools(ctx context.Context) ([]model.Pool, error)
}

// Load builds a registry from the given sources in order. Invalid records are
// skipped with a warning; a source failing to load is fatal.
func Load(ctx context.Context, logger *zap.Logger, sources ...Source) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := New()
	invalid := 0
	for i, source := range sources {
		if source == nil {
			continue
		}
		records, err := source.LoadPools(ctx)
		if err != nil {
			return nil, fmt.Errorf("load pools from source %d: %w", i, err)
		}
		for _, record := range records {
			pool, err := PoolFromModel(record)
			if err != nil {
				invalid++
				logger.Warn("skip pool record", zap.Error(err))
				continue
			}
			reg.Add(pool)
		}
	}

	logger.Info("pool registry loaded",
		zap.Int("pools", reg.Len()),
		zap.Int("duplicates", reg.Duplicates()),
		zap.Int("invalid", invalid),
	)
	return reg, nil
}
