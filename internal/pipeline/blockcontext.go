package pipeline

import (
	"math/big"
	"sync"

	"mempoolScope/internal/model"
)

const baseFeeChangeDenominator = 8

// BlockContext holds the most recently observed block.
type BlockContext struct {
	mu    sync.RWMutex
	block model.NewBlock
}

func NewBlockContext() *BlockContext {
	return &BlockContext{}
}

// Update replaces the current block and returns the previous one. No ordering
// is enforced: an older block still replaces a newer one.
func (c *BlockContext) Update(block model.NewBlock) model.NewBlock {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.block
	c.block = block
	return prev
}

// Current returns a copy of the current block. The zero value means no block yet.
func (c *BlockContext) Current() model.NewBlock {
	c.mu.RLock()
	defer c.mu.RUnlock()
	block := c.block
	if block.BaseFeePerGas != nil {
		block.BaseFeePerGas = new(big.Int).Set(block.BaseFeePerGas)
	}
	return block
}

// PredictNextBaseFee applies the EIP-1559 update rule to block.
func PredictNextBaseFee(block model.NewBlock) *big.Int {
	baseFee := block.BaseFee()
	target := block.GasLimit / 2
	if target == 0 || block.GasUsed == target {
		return baseFee
	}

	targetBig := new(big.Int).SetUint64(target)
	denominator := big.NewInt(baseFeeChangeDenominator)

	if block.GasUsed > target {
		delta := new(big.Int).SetUint64(block.GasUsed - target)
		delta.Mul(delta, baseFee)
		delta.Div(delta, targetBig)
		delta.Div(delta, denominator)
		if delta.Sign() == 0 {
			delta.SetUint64(1)
		}
		return baseFee.Add(baseFee, delta)
	}

	delta := new(big.Int).SetUint64(target - block.GasUsed)
	delta.Mul(delta, baseFee)
	delta.Div(delta, targetBig)
	delta.Div(delta, denominator)
	return baseFee.Sub(baseFee, delta)
}
