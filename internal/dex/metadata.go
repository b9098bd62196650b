package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"mempoolScope/internal/model"
)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchPoolTokens completes a pool record with token0/token1 (and fee/tickSpacing for V3 pools)
// read from the pool contract. Fields already set are kept.
func FetchPoolTokens(ctx context.Context, caller ContractCaller, pool model.Pool) (model.Pool, error) {
	if caller == nil {
		return pool, fmt.Errorf("contract caller is nil")
	}
	if !common.IsHexAddress(pool.Address) {
		return pool, fmt.Errorf("invalid pool address: %s", pool.Address)
	}
	address := common.HexToAddress(pool.Address)

	parsed, err := PoolABI()
	if err != nil {
		return pool, fmt.Errorf("parse pool abi: %w", err)
	}

	if pool.Token0 == "" {
		values, err := callMethod(ctx, caller, address, parsed, "token0")
		if err != nil {
			return pool, err
		}
		token0, err := asAddress(values[0])
		if err != nil {
			return pool, fmt.Errorf("token0: %w", err)
		}
		pool.Token0 = token0.Hex()
	}

	if pool.Token1 == "" {
		values, err := callMethod(ctx, caller, address, parsed, "token1")
		if err != nil {
			return pool, err
		}
		token1, err := asAddress(values[0])
		if err != nil {
			return pool, fmt.Errorf("token1: %w", err)
		}
		pool.Token1 = token1.Hex()
	}

	if pool.Kind != model.PoolKindUniswapV3 {
		return pool, nil
	}

	if pool.Fee == 0 {
		values, err := callMethod(ctx, caller, address, parsed, "fee")
		if err != nil {
			return pool, err
		}
		feeInt, err := asBigInt(values[0])
		if err != nil {
			return pool, fmt.Errorf("fee: %w", err)
		}
		pool.Fee = uint32(feeInt.Uint64())
	}

	if pool.TickSpacing == 0 {
		values, err := callMethod(ctx, caller, address, parsed, "tickSpacing")
		if err != nil {
			return pool, err
		}
		tickSpacingInt, err := asBigInt(values[0])
		if err != nil {
			return pool, fmt.Errorf("tick spacing: %w", err)
		}
		tickSpacing, err := int24FromBig(tickSpacingInt)
		if err != nil {
			return pool, fmt.Errorf("tick spacing: %w", err)
		}
		pool.TickSpacing = tickSpacing
	}

	return pool, nil
}

func callMethod(ctx context.Context, caller ContractCaller, to common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &to, Data: data}
	resp, err := caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("unpack %s: empty result", method)
	}
	return values, nil
}

// TokenMeta is the ERC20 metadata of a token. Symbol and Name may be empty.
type TokenMeta struct {
	Address  common.Address
	Decimals uint8
	Symbol   string
	Name     string
}

// FetchTokenMeta loads token metadata via ERC20 calls. Only decimals is
// required; symbol and name fall back to bytes32 getters and are otherwise left empty.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (TokenMeta, error) {
	meta := TokenMeta{Address: token}
	if caller == nil {
		return meta, fmt.Errorf("contract caller is nil")
	}

	stringABI, err := TokenABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := TokenBytes32ABI()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if values, err := callMethod(ctx, caller, token, stringABI, "symbol"); err == nil {
		if symbol, ok := values[0].(string); ok {
			meta.Symbol = symbol
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "symbol"); err == nil {
		if symbol, ok := bytes32ToString(values[0]); ok {
			meta.Symbol = symbol
		}
	} else if logger != nil {
		logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	if values, err := callMethod(ctx, caller, token, stringABI, "name"); err == nil {
		if name, ok := values[0].(string); ok {
			meta.Name = name
		}
	} else if values, err := callMethod(ctx, caller, token, bytes32ABI, "name"); err == nil {
		if name, ok := bytes32ToString(values[0]); ok {
			meta.Name = name
		}
	} else if logger != nil {
		logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	return meta, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asAddress(value interface{}) (common.Address, error) {
	switch v := value.(type) {
	case common.Address:
		return v, nil
	case *common.Address:
		return *v, nil
	default:
		return common.Address{}, fmt.Errorf("unsupported address type %T", value)
	}
}

func asBigInt(value interface{}) (*big.Int, error) {
	switch v := value.(type) {
	case *big.Int:
		return new(big.Int).Set(v), nil
	case big.Int:
		return new(big.Int).Set(&v), nil
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case int8:
		return big.NewInt(int64(v)), nil
	case int16:
		return big.NewInt(int64(v)), nil
	case int32:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	default:
		return nil, fmt.Errorf("unsupported int type %T", value)
	}
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case uint16:
		return uint8(v), nil
	case uint32:
		return uint8(v), nil
	case uint64:
		return uint8(v), nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}

func int24FromBig(value *big.Int) (int32, error) {
	min := big.NewInt(-1 << 23)
	max := big.NewInt((1 << 23) - 1)
	if value.Cmp(min) < 0 || value.Cmp(max) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
