package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"mempoolScope/internal/model"
)

func TestJsonlStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pools.jsonl")
	store := NewJsonlStorage(path)
	ctx := context.Background()

	pools, err := store.LoadPools(ctx)
	if err != nil {
		t.Fatalf("load missing file: %v", err)
	}
	if len(pools) != 0 {
		t.Fatalf("expected no pools, got %d", len(pools))
	}

	first := model.Pool{
		ChainID:        1,
		Kind:           model.PoolKindUniswapV3,
		Address:        "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640",
		Token0:         "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		Token1:         "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Fee:            500,
		TickSpacing:    10,
		FirstSeenBlock: 12376729,
	}
	second := model.Pool{
		ChainID: 1,
		Kind:    model.PoolKindUniswapV2,
		Address: "0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11",
		Token0:  "0x6B175474E89094C44Da98b954EedeAC495271d0F",
		Token1:  "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2",
		Fee:     3000,
	}
	if err := store.PutPoolBatch(ctx, []model.Pool{first}); err != nil {
		t.Fatalf("put batch: %v", err)
	}
	duplicate := first
	duplicate.Fee = 3000
	duplicate.Address = "0x88e6a0c2ddd26feeb64f039a2c41296fcb3f5640"
	if err := store.PutPoolBatch(ctx, []model.Pool{second, duplicate}); err != nil {
		t.Fatalf("put batch: %v", err)
	}

	pools, err = store.LoadPools(ctx)
	if err != nil {
		t.Fatalf("load pools: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0] != first || pools[1] != second {
		t.Fatalf("pools mismatch: %+v", pools)
	}
}

func TestJsonlStorageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pools.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := NewJsonlStorage(path).LoadPools(context.Background()); err == nil {
		t.Fatalf("expected parse error")
	}
}
