package chain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrNoStateDiff is returned when the node answered a trace without a state diff.
var ErrNoStateDiff = errors.New("state diff does not exist")

// DiffKind tells how a value changed in a state diff.
type DiffKind uint8

const (
	DiffSame DiffKind = iota
	DiffBorn
	DiffDied
	DiffChanged
)

func (k DiffKind) String() string {
	switch k {
	case DiffSame:
		return "same"
	case DiffBorn:
		return "born"
	case DiffDied:
		return "died"
	case DiffChanged:
		return "changed"
	default:
		return fmt.Sprintf("DiffKind(%d)", uint8(k))
	}
}

// Diff is a single trace_call state diff entry. Values are kept as the raw
// hex strings returned by the node.
//
//	"="                               same
//	{"+": v}                          born (To = v)
//	{"-": v}                          died (From = v)
//	{"*": {"from": a, "to": b}}       changed
type Diff struct {
	Kind DiffKind
	From string
	To   string
}

// Changed returns the before/after values when the entry is a change.
func (d Diff) Changed() (from, to string, ok bool) {
	if d.Kind != DiffChanged {
		return "", "", false
	}
	return d.From, d.To, true
}

func (d *Diff) UnmarshalJSON(data []byte) error {
	var same string
	if err := json.Unmarshal(data, &same); err == nil {
		if same != "=" {
			return fmt.Errorf("unexpected diff marker %q", same)
		}
		*d = Diff{Kind: DiffSame}
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode diff: %w", err)
	}
	if len(obj) != 1 {
		return fmt.Errorf("diff must have exactly one marker, got %d", len(obj))
	}

	for marker, raw := range obj {
		switch marker {
		case "+":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode born value: %w", err)
			}
			*d = Diff{Kind: DiffBorn, To: v}
		case "-":
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode died value: %w", err)
			}
			*d = Diff{Kind: DiffDied, From: v}
		case "*":
			var v struct {
				From string `json:"from"`
				To   string `json:"to"`
			}
			if err := json.Unmarshal(raw, &v); err != nil {
				return fmt.Errorf("decode changed value: %w", err)
			}
			*d = Diff{Kind: DiffChanged, From: v.From, To: v.To}
		default:
			return fmt.Errorf("unknown diff marker %q", marker)
		}
	}
	return nil
}

// AccountDiff is the per-address part of a state diff.
type AccountDiff struct {
	Balance Diff                 `json:"balance"`
	Nonce   Diff                 `json:"nonce"`
	Code    Diff                 `json:"code"`
	Storage map[common.Hash]Diff `json:"storage"`
}

// StateDiff maps every touched address to its changes.
type StateDiff map[common.Address]AccountDiff

// TraceResult is the subset of a trace_call response used here.
type TraceResult struct {
	Output    hexutil.Bytes `json:"output"`
	StateDiff StateDiff     `json:"stateDiff"`
}

// TraceStateDiff runs trace_call with the stateDiff tracer for tx on top of blockNumber.
func (c *Client) TraceStateDiff(ctx context.Context, tx *types.Transaction, blockNumber uint64) (StateDiff, error) {
	args, err := traceCallArgs(tx)
	if err != nil {
		return nil, err
	}

	var result TraceResult
	block := hexutil.EncodeBig(new(big.Int).SetUint64(blockNumber))
	if err := c.rpcClient.CallContext(ctx, &result, "trace_call", args, []string{"stateDiff"}, block); err != nil {
		return nil, fmt.Errorf("trace_call: %w", err)
	}
	if result.StateDiff == nil {
		return nil, ErrNoStateDiff
	}
	return result.StateDiff, nil
}

func traceCallArgs(tx *types.Transaction) (map[string]interface{}, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}
	from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
	if err != nil {
		return nil, fmt.Errorf("recover sender: %w", err)
	}

	arg := map[string]interface{}{
		"from": from,
		"data": hexutil.Bytes(tx.Data()),
	}
	if tx.To() != nil {
		arg["to"] = tx.To()
	}
	if tx.Gas() != 0 {
		arg["gas"] = hexutil.Uint64(tx.Gas())
	}
	if v := tx.Value(); v != nil && v.Sign() != 0 {
		arg["value"] = (*hexutil.Big)(v)
	}

	switch tx.Type() {
	case types.LegacyTxType, types.AccessListTxType:
		arg["gasPrice"] = (*hexutil.Big)(tx.GasPrice())
	default:
		arg["maxFeePerGas"] = (*hexutil.Big)(tx.GasFeeCap())
		arg["maxPriorityFeePerGas"] = (*hexutil.Big)(tx.GasTipCap())
	}
	if al := tx.AccessList(); len(al) > 0 {
		arg["accessList"] = al
	}
	return arg, nil
}
