package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"mempoolScope/internal/model"
)

// FactoryDecoder turns factory creation logs into pool records.
type FactoryDecoder struct {
	factoryABI  abi.ABI
	poolCreated common.Hash
	pairCreated common.Hash
}

func NewFactoryDecoder() (*FactoryDecoder, error) {
	parsed, err := FactoryABI()
	if err != nil {
		return nil, fmt.Errorf("parse factory abi: %w", err)
	}
	return &FactoryDecoder{
		factoryABI:  parsed,
		poolCreated: parsed.Events["PoolCreated"].ID,
		pairCreated: parsed.Events["PairCreated"].ID,
	}, nil
}

// Topic0 returns the creation event signatures for a pool kind.
func (d *FactoryDecoder) Topic0(kind string) (common.Hash, error) {
	switch kind {
	case model.PoolKindUniswapV3:
		return d.poolCreated, nil
	case model.PoolKindUniswapV2:
		return d.pairCreated, nil
	default:
		return common.Hash{}, fmt.Errorf("unknown pool kind: %s", kind)
	}
}

func (d *FactoryDecoder) CanDecode(topic0 common.Hash) bool {
	return topic0 == d.poolCreated || topic0 == d.pairCreated
}

// Decode decodes a PoolCreated or PairCreated log. ChainID and Factory are left to the caller.
func (d *FactoryDecoder) Decode(log types.Log) (model.Pool, error) {
	if len(log.Topics) == 0 {
		return model.Pool{}, fmt.Errorf("missing topic0")
	}

	switch log.Topics[0] {
	case d.poolCreated:
		return d.decodePoolCreated(log)
	case d.pairCreated:
		return d.decodePairCreated(log)
	default:
		return model.Pool{}, fmt.Errorf("unsupported topic0 %s", log.Topics[0].Hex())
	}
}

func (d *FactoryDecoder) decodePoolCreated(log types.Log) (model.Pool, error) {
	if len(log.Topics) < 4 {
		return model.Pool{}, fmt.Errorf("PoolCreated: expected 4 topics, got %d", len(log.Topics))
	}

	values, err := d.factoryABI.Events["PoolCreated"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.Pool{}, fmt.Errorf("unpack PoolCreated: %w", err)
	}
	if len(values) != 2 {
		return model.Pool{}, fmt.Errorf("PoolCreated: unexpected value count %d", len(values))
	}

	tickSpacingInt, err := asBigInt(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick spacing: %w", err)
	}
	tickSpacing, err := int24FromBig(tickSpacingInt)
	if err != nil {
		return model.Pool{}, fmt.Errorf("tick spacing: %w", err)
	}
	pool, err := asAddress(values[1])
	if err != nil {
		return model.Pool{}, fmt.Errorf("pool: %w", err)
	}

	fee := new(big.Int).SetBytes(log.Topics[3].Bytes())
	if !fee.IsUint64() || fee.Uint64() > 1<<24-1 {
		return model.Pool{}, fmt.Errorf("fee out of range: %s", fee)
	}

	return model.Pool{
		Kind:           model.PoolKindUniswapV3,
		Address:        pool.Hex(),
		Token0:         common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
		Token1:         common.BytesToAddress(log.Topics[2].Bytes()).Hex(),
		Fee:            uint32(fee.Uint64()),
		TickSpacing:    tickSpacing,
		FirstSeenBlock: log.BlockNumber,
	}, nil
}

func (d *FactoryDecoder) decodePairCreated(log types.Log) (model.Pool, error) {
	if len(log.Topics) < 3 {
		return model.Pool{}, fmt.Errorf("PairCreated: expected 3 topics, got %d", len(log.Topics))
	}

	values, err := d.factoryABI.Events["PairCreated"].Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.Pool{}, fmt.Errorf("unpack PairCreated: %w", err)
	}
	if len(values) != 2 {
		return model.Pool{}, fmt.Errorf("PairCreated: unexpected value count %d", len(values))
	}
	pair, err := asAddress(values[0])
	if err != nil {
		return model.Pool{}, fmt.Errorf("pair: %w", err)
	}

	// V2 pairs charge a flat 0.3%, expressed in V3 fee units.
	return model.Pool{
		Kind:           model.PoolKindUniswapV2,
		Address:        pair.Hex(),
		Token0:         common.BytesToAddress(log.Topics[1].Bytes()).Hex(),
		Token1:         common.BytesToAddress(log.Topics[2].Bytes()).Hex(),
		Fee:            3000,
		FirstSeenBlock: log.BlockNumber,
	}, nil
}
