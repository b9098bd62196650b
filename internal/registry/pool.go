package registry

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"mempoolScope/internal/model"
)

// Pool is an immutable snapshot of a liquidity pool.
type Pool struct {
	Kind        string
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int32
}

// Contains reports whether token is one of the pool's two tokens.
func (p Pool) Contains(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// PoolFromModel converts a stored pool record. Records with missing or malformed
// addresses are rejected.
func PoolFromModel(m model.Pool) (Pool, error) {
	switch m.Kind {
	case model.PoolKindUniswapV2, model.PoolKindUniswapV3:
	default:
		return Pool{}, fmt.Errorf("pool %s: unknown kind %q", m.Address, m.Kind)
	}

	address, err := parseAddress("address", m.Address)
	if err != nil {
		return Pool{}, err
	}
	token0, err := parseAddress("token0", m.Token0)
	if err != nil {
		return Pool{}, fmt.Errorf("pool %s: %w", m.Address, err)
	}
	token1, err := parseAddress("token1", m.Token1)
	if err != nil {
		return Pool{}, fmt.Errorf("pool %s: %w", m.Address, err)
	}

	pool := Pool{
		Kind:    m.Kind,
		Address: address,
		Token0:  token0,
		Token1:  token1,
		Fee:     m.Fee,
	}
	if m.Kind == model.PoolKindUniswapV3 {
		pool.TickSpacing = m.TickSpacing
	}
	return pool, nil
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s: %q", field, value)
	}
	return common.HexToAddress(value), nil
}
