package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"mempoolScope/internal/model"
)

func TestStoreUpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, filepath.Join(t.TempDir(), "db", "pools.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	pool := model.Pool{
		ChainID:        1,
		Kind:           model.PoolKindUniswapV3,
		Address:        "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		Token0:         "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Token1:         "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Fee:            500,
		TickSpacing:    10,
		Factory:        "0x1F98431c8aD98523631AE4a59f267346ea31F984",
		FirstSeenBlock: 12376729,
	}
	if err := store.PutPoolBatch(ctx, []model.Pool{pool}); err != nil {
		t.Fatalf("put: %v", err)
	}

	later := pool
	later.FirstSeenBlock = 13000000
	if err := store.PutPoolBatch(ctx, []model.Pool{later}); err != nil {
		t.Fatalf("put again: %v", err)
	}

	pools, err := store.LoadPools(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(pools) != 1 {
		t.Fatalf("expected 1 pool, got %d", len(pools))
	}
	if pools[0] != pool {
		t.Fatalf("pool mismatch: %+v", pools[0])
	}
}
