package model

import "math/big"

// NewBlock is the block context carried between producers and the dispatcher.
// The zero value means no block has been observed yet.
type NewBlock struct {
	Number        uint64   `json:"number"`
	GasUsed       uint64   `json:"gas_used"`
	GasLimit      uint64   `json:"gas_limit"`
	BaseFeePerGas *big.Int `json:"base_fee_per_gas"`
	Timestamp     uint64   `json:"timestamp"`
}

// IsZero reports whether b is the "no block observed" value.
func (b NewBlock) IsZero() bool {
	return b.Number == 0
}

// BaseFee returns the base fee, treating a missing value as zero.
func (b NewBlock) BaseFee() *big.Int {
	if b.BaseFeePerGas == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(b.BaseFeePerGas)
}
