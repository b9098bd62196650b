package dex

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	mappingKeyArgs     abi.Arguments
	mappingKeyArgsOnce sync.Once
	mappingKeyArgsErr  error
)

func mappingKeyArguments() (abi.Arguments, error) {
	mappingKeyArgsOnce.Do(func() {
		addressType, err := abi.NewType("address", "", nil)
		if err != nil {
			mappingKeyArgsErr = err
			return
		}
		uint256Type, err := abi.NewType("uint256", "", nil)
		if err != nil {
			mappingKeyArgsErr = err
			return
		}
		mappingKeyArgs = abi.Arguments{{Type: addressType}, {Type: uint256Type}}
	})
	return mappingKeyArgs, mappingKeyArgsErr
}

// BalanceSlot returns the storage slot of balances[holder] for a token whose
// balance mapping is declared at mappingSlot: keccak256(abi.encode(holder, mappingSlot)).
func BalanceSlot(holder common.Address, mappingSlot uint64) (common.Hash, error) {
	args, err := mappingKeyArguments()
	if err != nil {
		return common.Hash{}, fmt.Errorf("build mapping key abi: %w", err)
	}
	encoded, err := args.Pack(holder, new(big.Int).SetUint64(mappingSlot))
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode mapping key: %w", err)
	}
	return crypto.Keccak256Hash(encoded), nil
}
