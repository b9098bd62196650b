package storage

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"mempoolScope/internal/dex"
	"mempoolScope/internal/model"
)

// SeedFile is a hand-maintained YAML list of pools:
//
//	pools:
//	  - kind: uniswapv2
//	    address: "0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11"
//	  - kind: uniswapv3
//	    address: "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"
//	    token0: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
//	    token1: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
//
// Entries without tokens are completed with on-chain calls.
type SeedFile struct {
	path   string
	caller dex.ContractCaller
	logger *zap.Logger
}

type seedDocument struct {
	Pools []model.Pool `yaml:"pools"`
}

func NewSeedFile(path string, caller dex.ContractCaller, logger *zap.Logger) *SeedFile {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedFile{path: path, caller: caller, logger: logger}
}

func (s *SeedFile) LoadPools(ctx context.Context) ([]model.Pool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	pools := make([]model.Pool, 0, len(doc.Pools))
	for i, pool := range doc.Pools {
		if pool.Kind == "" {
			return nil, fmt.Errorf("seed pool %d (%s): kind is required", i, pool.Address)
		}
		if pool.Token0 == "" || pool.Token1 == "" || (pool.Kind == model.PoolKindUniswapV3 && pool.Fee == 0) {
			if s.caller == nil {
				return nil, fmt.Errorf("seed pool %d (%s): tokens missing and no node to resolve them", i, pool.Address)
			}
			resolved, err := dex.FetchPoolTokens(ctx, s.caller, pool)
			if err != nil {
				return nil, fmt.Errorf("resolve seed pool %s: %w", pool.Address, err)
			}
			s.logger.Debug("resolved seed pool",
				zap.String("pool", resolved.Address),
				zap.String("token0", resolved.Token0),
				zap.String("token1", resolved.Token1),
			)
			pool = resolved
		}
		pools = append(pools, pool)
	}

	s.logger.Info("seed pools loaded", zap.String("path", s.path), zap.Int("pools", len(pools)))
	return pools, nil
}

// WriteSeedFile writes pools in the seed format.
func WriteSeedFile(path string, pools []model.Pool) error {
	data, err := yaml.Marshal(seedDocument{Pools: pools})
	if err != nil {
		return fmt.Errorf("marshal seed file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write seed file: %w", err)
	}
	return nil
}
