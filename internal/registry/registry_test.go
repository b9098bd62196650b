package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mempoolScope/internal/model"
)

var (
	weth = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	dai  = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
)

type sliceSource struct {
	pools []model.Pool
	err   error
}

func (s sliceSource) LoadPools(context.Context) ([]model.Pool, error) {
	return s.pools, s.err
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := New()
	first := Pool{Kind: model.PoolKindUniswapV3, Address: common.HexToAddress("0x01"), Token0: usdc, Token1: weth, Fee: 500}
	second := first
	second.Fee = 3000

	assert.True(t, reg.Add(first))
	assert.False(t, reg.Add(second))
	assert.Equal(t, 1, reg.Len())
	assert.Equal(t, 1, reg.Duplicates())

	got, ok := reg.Get(first.Address)
	require.True(t, ok)
	assert.Equal(t, uint32(500), got.Fee)
}

func TestPoolsWith(t *testing.T) {
	reg := New()
	reg.Add(Pool{Kind: model.PoolKindUniswapV2, Address: common.HexToAddress("0x03"), Token0: dai, Token1: weth})
	reg.Add(Pool{Kind: model.PoolKindUniswapV3, Address: common.HexToAddress("0x01"), Token0: usdc, Token1: weth})
	reg.Add(Pool{Kind: model.PoolKindUniswapV3, Address: common.HexToAddress("0x02"), Token0: usdc, Token1: dai})

	pools := reg.PoolsWith(weth)
	require.Len(t, pools, 2)
	assert.Equal(t, common.HexToAddress("0x01"), pools[0].Address)
	assert.Equal(t, common.HexToAddress("0x03"), pools[1].Address)
	assert.Empty(t, reg.PoolsWith(common.HexToAddress("0xff")))
}

func TestLoad(t *testing.T) {
	stored := sliceSource{pools: []model.Pool{
		{Kind: model.PoolKindUniswapV3, Address: "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640", Token0: usdc.Hex(), Token1: weth.Hex(), Fee: 500, TickSpacing: 10},
		{Kind: model.PoolKindUniswapV3, Address: "not-an-address", Token0: usdc.Hex(), Token1: weth.Hex()},
		{Kind: "curve", Address: "0x1111111111111111111111111111111111111111", Token0: usdc.Hex(), Token1: weth.Hex()},
	}}
	seed := sliceSource{pools: []model.Pool{
		{Kind: model.PoolKindUniswapV2, Address: "0xA478c2975Ab1Ea89e8196811F51A7B7Ade33eB11", Token0: dai.Hex(), Token1: weth.Hex()},
		{Kind: model.PoolKindUniswapV2, Address: "0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640", Token0: dai.Hex(), Token1: weth.Hex()},
	}}

	reg, err := Load(context.Background(), nil, stored, seed)
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, 1, reg.Duplicates())

	pool, ok := reg.Get(common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640"))
	require.True(t, ok)
	assert.Equal(t, model.PoolKindUniswapV3, pool.Kind)
	assert.Equal(t, int32(10), pool.TickSpacing)
	assert.True(t, pool.Contains(weth))
	assert.False(t, pool.Contains(dai))
}

func TestLoadSourceFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Load(context.Background(), nil, sliceSource{err: boom})
	assert.ErrorIs(t, err, boom)
}
