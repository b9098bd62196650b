package pipeline

import (
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"

	"mempoolScope/internal/model"
)

type EventKind uint8

const (
	EventNewBlock EventKind = iota + 1
	EventTransaction
)

func (k EventKind) String() string {
	switch k {
	case EventNewBlock:
		return "block"
	case EventTransaction:
		return "transaction"
	default:
		return "unknown"
	}
}

// Event is what producers publish on the bus. Exactly one of Block or Tx is
// meaningful, selected by Kind.
type Event struct {
	Kind  EventKind
	Block model.NewBlock
	Tx    *types.Transaction
}

func NewBlockEvent(block model.NewBlock) Event {
	return Event{Kind: EventNewBlock, Block: block}
}

func TransactionEvent(tx *types.Transaction) Event {
	return Event{Kind: EventTransaction, Tx: tx}
}

// MaxFeePerGas returns the fee cap of a dynamic-fee style transaction, or nil
// for legacy and access-list transactions which carry no such field.
func MaxFeePerGas(tx *types.Transaction) *big.Int {
	if tx == nil {
		return nil
	}
	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType:
		return nil
	default:
		return tx.GasFeeCap()
	}
}

// blockFromHeader converts a header. ok is false for headers without a number.
func blockFromHeader(header *types.Header) (model.NewBlock, bool) {
	if header == nil || header.Number == nil {
		return model.NewBlock{}, false
	}
	baseFee := new(big.Int)
	if header.BaseFee != nil {
		baseFee.Set(header.BaseFee)
	}
	return model.NewBlock{
		Number:        header.Number.Uint64(),
		GasUsed:       header.GasUsed,
		GasLimit:      header.GasLimit,
		BaseFeePerGas: baseFee,
		Timestamp:     header.Time,
	}, true
}
