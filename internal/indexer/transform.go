package indexer

import "mempoolScope/internal/model"

func buildPool(chainID uint64, factory Factory, pool model.Pool) model.Pool {
	pool.ChainID = chainID
	pool.Factory = factory.Address.Hex()
	if pool.Kind != model.PoolKindUniswapV3 {
		pool.TickSpacing = 0
	}
	return pool
}
