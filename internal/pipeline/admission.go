package pipeline

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"mempoolScope/internal/model"
)

// Admission decisions.
const (
	DecisionNoBlock  = "no_block"
	DecisionRejected = "rejected"
	DecisionAdmitted = "admitted"
)

// Admission is the fee check of one transaction against the current block.
type Admission struct {
	Decision    string
	MaxFee      *big.Int
	NextBaseFee *big.Int
}

// Admit decides whether tx could be included in the block after current.
// A transaction without a max fee counts as zero and is never admitted.
func Admit(tx *types.Transaction, current model.NewBlock) Admission {
	if current.IsZero() {
		return Admission{Decision: DecisionNoBlock}
	}
	next := PredictNextBaseFee(current)
	maxFee := MaxFeePerGas(tx)
	if maxFee == nil {
		maxFee = new(big.Int)
	}
	decision := DecisionRejected
	if maxFee.Cmp(next) > 0 {
		decision = DecisionAdmitted
	}
	return Admission{Decision: decision, MaxFee: maxFee, NextBaseFee: next}
}
