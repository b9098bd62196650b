package analyzer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mempoolScope/internal/chain"
	"mempoolScope/internal/dex"
	"mempoolScope/internal/model"
	"mempoolScope/internal/registry"
)

var (
	weth  = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	usdc  = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	dai   = common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	pool1 = common.HexToAddress("0x88e6A0c2dDD26FEEb64F039a2c41296FcB3f5640")
	pool2 = common.HexToAddress("0x5777d92f208679DB4b9778590Fa3CAB3aC9e2168")
	pool3 = common.HexToAddress("0x0d4a11d5EEaaC28EC3F61d100daF4d40471f1852")
)

func word(v uint64) string {
	return common.BigToHash(new(big.Int).SetUint64(v)).Hex()
}

func testRegistry() *registry.Registry {
	reg := registry.New()
	reg.Add(registry.Pool{Kind: model.PoolKindUniswapV3, Address: pool1, Token0: usdc, Token1: weth, Fee: 500})
	reg.Add(registry.Pool{Kind: model.PoolKindUniswapV3, Address: pool2, Token0: dai, Token1: usdc, Fee: 100})
	reg.Add(registry.Pool{Kind: model.PoolKindUniswapV2, Address: pool3, Token0: weth, Token1: dai})
	return reg
}

func slotOf(t *testing.T, pool common.Address) common.Hash {
	t.Helper()
	slot, err := dex.BalanceSlot(pool, DefaultBalanceSlot)
	require.NoError(t, err)
	return slot
}

func changed(from, to string) chain.Diff {
	return chain.Diff{Kind: chain.DiffChanged, From: from, To: to}
}

func newAnalyzer(cfg Config) *Analyzer {
	if cfg.WatchToken == (common.Address{}) {
		cfg.WatchToken = weth
	}
	if cfg.BalanceSlot == 0 {
		cfg.BalanceSlot = DefaultBalanceSlot
	}
	return New(nil, testRegistry(), cfg)
}

func TestAnalyzeDiffIncrease(t *testing.T) {
	a := newAnalyzer(Config{})
	txHash := common.HexToHash("0xabc")
	diff := chain.StateDiff{
		pool1: {},
		pool2: {},
		weth: {Storage: map[common.Hash]chain.Diff{
			slotOf(t, pool1): changed(word(1000), word(1500)),
		}},
	}

	report, err := a.AnalyzeDiff(txHash, 100, diff)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClassified, report.Outcome)
	assert.Equal(t, 1, report.TouchedPools)
	require.Len(t, report.Changes, 1)

	change := report.Changes[0]
	assert.Equal(t, pool1.Hex(), change.Pool)
	assert.Equal(t, "1000", change.Before)
	assert.Equal(t, "1500", change.After)
	assert.Equal(t, "500", change.Delta)
	assert.Equal(t, model.DirectionIncrease, change.Direction)
	assert.Equal(t, uint64(100), change.BlockNumber)
	assert.Equal(t, txHash.Hex(), change.TxHash)
}

func TestAnalyzeDiffDecrease(t *testing.T) {
	diff := chain.StateDiff{
		pool1: {},
		weth: {Storage: map[common.Hash]chain.Diff{
			slotOf(t, pool1): changed(word(1500), word(1000)),
		}},
	}

	report, err := newAnalyzer(Config{}).AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	assert.Equal(t, OutcomeClassified, report.Outcome)
	assert.Empty(t, report.Changes)

	report, err = newAnalyzer(Config{ReportDecreases: true}).AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	require.Len(t, report.Changes, 1)
	assert.Equal(t, model.DirectionDecrease, report.Changes[0].Direction)
}

func TestAnalyzeDiffEqualAndUnchanged(t *testing.T) {
	diff := chain.StateDiff{
		pool1: {},
		pool3: {},
		weth: {Storage: map[common.Hash]chain.Diff{
			slotOf(t, pool1): changed(word(7), word(7)),
			slotOf(t, pool3): {Kind: chain.DiffSame},
		}},
	}

	report, err := newAnalyzer(Config{ReportDecreases: true}).AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	assert.Equal(t, 2, report.TouchedPools)
	assert.Empty(t, report.Changes)
}

func TestAnalyzeDiffNoTouchedPools(t *testing.T) {
	diff := chain.StateDiff{
		pool2: {},
		weth:  {},
	}
	report, err := newAnalyzer(Config{}).AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoTouchedPools, report.Outcome)
	assert.Zero(t, report.TouchedPools)
}

func TestAnalyzeDiffTokenNotTouched(t *testing.T) {
	diff := chain.StateDiff{pool1: {}}
	report, err := newAnalyzer(Config{}).AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	assert.Equal(t, OutcomeTokenNotTouched, report.Outcome)
	assert.Equal(t, 1, report.TouchedPools)
}

func TestAnalyzeDiffSlotDecodeFailure(t *testing.T) {
	diff := chain.StateDiff{
		pool1: {},
		weth: {Storage: map[common.Hash]chain.Diff{
			slotOf(t, pool1): changed("0xzz", word(1)),
		}},
	}
	_, err := newAnalyzer(Config{}).AnalyzeDiff(common.Hash{}, 1, diff)
	assert.ErrorIs(t, err, ErrSlotDecode)
}

func TestAnalyzeDiffCustomSlotAndOrdering(t *testing.T) {
	a := New(nil, testRegistry(), Config{WatchToken: weth, BalanceSlot: 0})
	slot1, err := dex.BalanceSlot(pool1, 0)
	require.NoError(t, err)
	slot3, err := dex.BalanceSlot(pool3, 0)
	require.NoError(t, err)

	diff := chain.StateDiff{
		pool3: {},
		pool1: {},
		weth: {Storage: map[common.Hash]chain.Diff{
			slot1: changed(word(1), word(2)),
			slot3: changed("0x0", "0x10"),
		}},
	}

	first, err := a.AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	require.Len(t, first.Changes, 2)
	assert.Equal(t, pool3.Hex(), first.Changes[0].Pool)
	assert.Equal(t, "16", first.Changes[0].After)
	assert.Equal(t, pool1.Hex(), first.Changes[1].Pool)

	second, err := a.AnalyzeDiff(common.Hash{}, 1, diff)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

type fakeTracer struct {
	diff  chain.StateDiff
	err   error
	block uint64
}

func (f *fakeTracer) TraceStateDiff(_ context.Context, _ *types.Transaction, blockNumber uint64) (chain.StateDiff, error) {
	f.block = blockNumber
	return f.diff, f.err
}

func TestAnalyzeTracesAtBlock(t *testing.T) {
	tracer := &fakeTracer{diff: chain.StateDiff{
		pool1: {},
		weth: {Storage: map[common.Hash]chain.Diff{
			slotOf(t, pool1): changed(word(1000), word(1500)),
		}},
	}}
	a := New(tracer, testRegistry(), Config{WatchToken: weth, BalanceSlot: DefaultBalanceSlot})
	tx := types.NewTx(&types.DynamicFeeTx{ChainID: big.NewInt(1), GasFeeCap: big.NewInt(113)})

	report, err := a.Analyze(context.Background(), tx, 42)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tracer.block)
	assert.Equal(t, tx.Hash(), report.TxHash)
	require.Len(t, report.Changes, 1)
}

func TestAnalyzeTraceFailure(t *testing.T) {
	a := New(&fakeTracer{err: errors.New("method not found")}, testRegistry(), Config{WatchToken: weth})
	tx := types.NewTx(&types.LegacyTx{GasPrice: big.NewInt(1)})

	_, err := a.Analyze(context.Background(), tx, 1)
	assert.ErrorIs(t, err, ErrTraceUnavailable)

	a = New(&fakeTracer{}, testRegistry(), Config{WatchToken: weth})
	_, err = a.Analyze(context.Background(), tx, 1)
	assert.ErrorIs(t, err, ErrTraceUnavailable)
}
