package model

// Pool kinds understood by the registry and the factory decoder.
const (
	PoolKindUniswapV2 = "uniswapv2"
	PoolKindUniswapV3 = "uniswapv3"
)

// Pool is the stored form of a liquidity pool discovered from a factory or seed file.
type Pool struct {
	ChainID        uint64 `json:"chain_id" yaml:"chain_id"`
	Kind           string `json:"kind" yaml:"kind"`
	Address        string `json:"address" yaml:"address"`
	Token0         string `json:"token0" yaml:"token0"`
	Token1         string `json:"token1" yaml:"token1"`
	Fee            uint32 `json:"fee,omitempty" yaml:"fee,omitempty"`
	TickSpacing    int32  `json:"tick_spacing,omitempty" yaml:"tick_spacing,omitempty"`
	Factory        string `json:"factory,omitempty" yaml:"factory,omitempty"`
	FirstSeenBlock uint64 `json:"first_seen_block,omitempty" yaml:"first_seen_block,omitempty"`
}
