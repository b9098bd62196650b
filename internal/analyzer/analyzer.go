package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"mempoolScope/internal/chain"
	"mempoolScope/internal/dex"
	"mempoolScope/internal/model"
	"mempoolScope/internal/registry"
)

// DefaultBalanceSlot is the storage index of the balance mapping in WETH9.
const DefaultBalanceSlot = 3

// Analysis outcomes.
const (
	OutcomeNoTouchedPools  = "no_touched_pools"
	OutcomeTokenNotTouched = "token_not_touched"
	OutcomeClassified      = "classified"
)

var (
	ErrTraceUnavailable = errors.New("state diff unavailable")
	ErrSlotDecode       = errors.New("decode balance slot")
)

// Tracer produces the state diff of a transaction executed on top of a block.
type Tracer interface {
	TraceStateDiff(ctx context.Context, tx *types.Transaction, blockNumber uint64) (chain.StateDiff, error)
}

type Config struct {
	WatchToken  common.Address
	BalanceSlot uint64
	// ReportDecreases emits records for balance decreases as well.
	ReportDecreases bool
}

// Report is the result of analyzing one transaction.
type Report struct {
	TxHash       common.Hash
	BlockNumber  uint64
	Outcome      string
	TouchedPools int
	Changes      []model.BalanceChange
}

// Analyzer classifies how a pending transaction changes the watched-token
// balance of registered pools.
type Analyzer struct {
	tracer   Tracer
	registry *registry.Registry
	cfg      Config
}

func New(tracer Tracer, reg *registry.Registry, cfg Config) *Analyzer {
	if reg == nil {
		reg = registry.New()
	}
	return &Analyzer{tracer: tracer, registry: reg, cfg: cfg}
}

// Analyze traces tx on top of blockNumber and classifies the resulting diff.
func (a *Analyzer) Analyze(ctx context.Context, tx *types.Transaction, blockNumber uint64) (Report, error) {
	if a.tracer == nil {
		return Report{}, fmt.Errorf("%w: no tracer configured", ErrTraceUnavailable)
	}
	diff, err := a.tracer.TraceStateDiff(ctx, tx, blockNumber)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrTraceUnavailable, err)
	}
	if diff == nil {
		return Report{}, fmt.Errorf("%w: empty diff", ErrTraceUnavailable)
	}
	return a.AnalyzeDiff(tx.Hash(), blockNumber, diff)
}

// AnalyzeDiff classifies an already obtained state diff. It performs no I/O.
func (a *Analyzer) AnalyzeDiff(txHash common.Hash, blockNumber uint64, diff chain.StateDiff) (Report, error) {
	report := Report{TxHash: txHash, BlockNumber: blockNumber}

	touched := make([]registry.Pool, 0)
	for address := range diff {
		pool, ok := a.registry.Get(address)
		if !ok || !pool.Contains(a.cfg.WatchToken) {
			continue
		}
		touched = append(touched, pool)
	}
	report.TouchedPools = len(touched)
	if len(touched) == 0 {
		report.Outcome = OutcomeNoTouchedPools
		return report, nil
	}

	token, ok := diff[a.cfg.WatchToken]
	if !ok {
		report.Outcome = OutcomeTokenNotTouched
		return report, nil
	}

	sort.Slice(touched, func(i, j int) bool {
		return bytes.Compare(touched[i].Address[:], touched[j].Address[:]) < 0
	})

	changes := make([]model.BalanceChange, 0, len(touched))
	for _, pool := range touched {
		slot, err := dex.BalanceSlot(pool.Address, a.cfg.BalanceSlot)
		if err != nil {
			return Report{}, fmt.Errorf("pool %s: %w", pool.Address.Hex(), err)
		}
		from, to, ok := token.Storage[slot].Changed()
		if !ok {
			continue
		}

		before, err := parseWord(from)
		if err != nil {
			return Report{}, fmt.Errorf("%w: pool %s before: %v", ErrSlotDecode, pool.Address.Hex(), err)
		}
		after, err := parseWord(to)
		if err != nil {
			return Report{}, fmt.Errorf("%w: pool %s after: %v", ErrSlotDecode, pool.Address.Hex(), err)
		}

		var direction string
		switch after.Cmp(before) {
		case 1:
			direction = model.DirectionIncrease
		case -1:
			if !a.cfg.ReportDecreases {
				continue
			}
			direction = model.DirectionDecrease
		default:
			continue
		}

		changes = append(changes, model.BalanceChange{
			TxHash:      txHash.Hex(),
			BlockNumber: blockNumber,
			Pool:        pool.Address.Hex(),
			PoolKind:    pool.Kind,
			Token:       a.cfg.WatchToken.Hex(),
			Slot:        slot.Hex(),
			Before:      before.Dec(),
			After:       after.Dec(),
			Delta:       new(big.Int).Sub(after.ToBig(), before.ToBig()).String(),
			Direction:   direction,
		})
	}

	report.Outcome = OutcomeClassified
	report.Changes = changes
	return report, nil
}

// parseWord decodes a hex storage word of at most 32 bytes.
func parseWord(value string) (*uint256.Int, error) {
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		return nil, fmt.Errorf("missing 0x prefix: %q", value)
	}
	digits := value[2:]
	if len(digits)%2 == 1 {
		digits = "0" + digits
	}
	raw, err := hexutil.Decode("0x" + digits)
	if err != nil {
		return nil, err
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("word longer than 32 bytes: %q", value)
	}
	return new(uint256.Int).SetBytes(raw), nil
}
