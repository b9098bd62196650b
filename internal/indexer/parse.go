package indexer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"mempoolScope/internal/model"
)

// Factory is a pool factory scanned by the sync.
type Factory struct {
	Kind       string
	Address    common.Address
	StartBlock uint64
}

func (f Factory) String() string {
	return fmt.Sprintf("%s:%s:%d", f.Kind, f.Address.Hex(), f.StartBlock)
}

// DefaultFactories is the Uniswap V3 factory on mainnet.
var DefaultFactories = []string{
	"uniswapv3:0x1F98431c8aD98523631AE4a59f267346ea31F984:12369621",
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		address, err := ParseAddress(input)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, address)
	}
	return addresses, nil
}

// ParseFactories parses "kind:address[:startBlock]" entries.
func ParseFactories(inputs []string) ([]Factory, error) {
	factories := make([]Factory, 0, len(inputs))
	seen := make(map[common.Address]struct{})
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		parts := strings.Split(input, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid factory %q: want kind:address[:startBlock]", input)
		}

		kind := strings.ToLower(strings.TrimSpace(parts[0]))
		switch kind {
		case model.PoolKindUniswapV2, model.PoolKindUniswapV3:
		default:
			return nil, fmt.Errorf("invalid factory %q: unknown kind %q", input, kind)
		}

		address, err := ParseAddress(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid factory %q: %w", input, err)
		}
		if _, ok := seen[address]; ok {
			return nil, fmt.Errorf("duplicate factory %s", address.Hex())
		}
		seen[address] = struct{}{}

		var start uint64
		if len(parts) == 3 {
			start, err = strconv.ParseUint(strings.TrimSpace(parts[2]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid factory %q: start block: %w", input, err)
			}
		}
		factories = append(factories, Factory{Kind: kind, Address: address, StartBlock: start})
	}
	return factories, nil
}
