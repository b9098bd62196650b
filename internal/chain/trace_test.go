package chain

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTrace = `{
  "output": "0x",
  "stateDiff": {
    "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2": {
      "balance": "=",
      "nonce": "=",
      "code": "=",
      "storage": {
        "0x0000000000000000000000000000000000000000000000000000000000000001": {
          "*": {
            "from": "0x00000000000000000000000000000000000000000000000000000000000003e8",
            "to": "0x00000000000000000000000000000000000000000000000000000000000005dc"
          }
        }
      }
    },
    "0x1111111111111111111111111111111111111111": {
      "balance": {"+": "0x10"},
      "nonce": {"-": "0x1"},
      "code": "=",
      "storage": {}
    }
  }
}`

type traceService struct {
	args   map[string]interface{}
	types  []string
	block  string
	result json.RawMessage
}

func (s *traceService) Call(args map[string]interface{}, traceTypes []string, block string) (json.RawMessage, error) {
	s.args = args
	s.types = traceTypes
	s.block = block
	return s.result, nil
}

func newTraceClient(t *testing.T, svc *traceService) *Client {
	t.Helper()
	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("trace", svc))
	t.Cleanup(server.Stop)

	client := NewClientFromRPC(rpc.DialInProc(server))
	t.Cleanup(client.Close)
	return client
}

func signedDynamicFeeTx(t *testing.T) (*types.Transaction, common.Address) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	to := common.HexToAddress("0x2222222222222222222222222222222222222222")
	signer := types.LatestSignerForChainID(big.NewInt(1))
	tx := types.MustSignNewTx(key, signer, &types.DynamicFeeTx{
		ChainID:   big.NewInt(1),
		Nonce:     7,
		GasTipCap: big.NewInt(2),
		GasFeeCap: big.NewInt(113),
		Gas:       150000,
		To:        &to,
		Value:     big.NewInt(5),
		Data:      []byte{0xde, 0xad},
	})
	return tx, crypto.PubkeyToAddress(key.PublicKey)
}

func TestDiffUnmarshal(t *testing.T) {
	var diff StateDiff
	require.NoError(t, json.Unmarshal([]byte(extractStateDiff(t, sampleTrace)), &diff))

	weth := common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	account, ok := diff[weth]
	require.True(t, ok, "weth should be present")
	assert.Equal(t, DiffSame, account.Balance.Kind)

	slot := common.HexToHash("0x01")
	from, to, ok := account.Storage[slot].Changed()
	require.True(t, ok)
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000003e8", from)
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000005dc", to)

	other := diff[common.HexToAddress("0x1111111111111111111111111111111111111111")]
	assert.Equal(t, DiffBorn, other.Balance.Kind)
	assert.Equal(t, "0x10", other.Balance.To)
	assert.Equal(t, DiffDied, other.Nonce.Kind)
	assert.Equal(t, "0x1", other.Nonce.From)
	_, _, ok = other.Balance.Changed()
	assert.False(t, ok)
}

func TestDiffUnmarshalRejectsUnknownMarker(t *testing.T) {
	var d Diff
	assert.Error(t, json.Unmarshal([]byte(`{"?": "0x1"}`), &d))
	assert.Error(t, json.Unmarshal([]byte(`"~"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`{"+": "0x1", "-": "0x2"}`), &d))
}

func TestTraceStateDiff(t *testing.T) {
	svc := &traceService{result: json.RawMessage(sampleTrace)}
	client := newTraceClient(t, svc)
	tx, sender := signedDynamicFeeTx(t)

	diff, err := client.TraceStateDiff(context.Background(), tx, 19000000)
	require.NoError(t, err)
	assert.Len(t, diff, 2)

	assert.Equal(t, []string{"stateDiff"}, svc.types)
	assert.Equal(t, "0x121eac0", svc.block)
	assert.Equal(t, sender.Hex(), common.HexToAddress(svc.args["from"].(string)).Hex())
	assert.Equal(t, "0x2222222222222222222222222222222222222222", svc.args["to"])
	assert.Equal(t, "0x71", svc.args["maxFeePerGas"])
	assert.Equal(t, "0x2", svc.args["maxPriorityFeePerGas"])
	assert.Equal(t, "0xdead", svc.args["data"])
	assert.NotContains(t, svc.args, "gasPrice")
}

func TestTraceStateDiffMissingDiff(t *testing.T) {
	svc := &traceService{result: json.RawMessage(`{"output":"0x","stateDiff":null}`)}
	client := newTraceClient(t, svc)
	tx, _ := signedDynamicFeeTx(t)

	_, err := client.TraceStateDiff(context.Background(), tx, 1)
	assert.ErrorIs(t, err, ErrNoStateDiff)
}

func extractStateDiff(t *testing.T, trace string) string {
	t.Helper()
	var result struct {
		StateDiff json.RawMessage `json:"stateDiff"`
	}
	require.NoError(t, json.Unmarshal([]byte(trace), &result))
	return string(result.StateDiff)
}
