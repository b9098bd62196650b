package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"mempoolScope/internal/analyzer"
	"mempoolScope/internal/model"
	"mempoolScope/internal/observability"
)

// Analyzer classifies an admitted transaction against a block.
type Analyzer interface {
	Analyze(ctx context.Context, tx *types.Transaction, blockNumber uint64) (analyzer.Report, error)
}

type DispatcherConfig struct {
	// AnalysisWorkers is the number of concurrent analyses. Zero analyzes
	// inline, so a slow trace delays every following event.
	AnalysisWorkers int
	// TokenDecimals scales logged balance deltas of the watched token.
	TokenDecimals uint8
}

// Dispatcher is the single consumer of the bus. It tracks the block context,
// applies the admission filter and hands admitted transactions to the analyzer.
type Dispatcher struct {
	sub      *Subscriber
	blocks   *BlockContext
	analyzer Analyzer
	workers  *semaphore.Weighted
	decimals uint8
	inflight sync.WaitGroup
	logger   *zap.Logger
	metrics  *observability.Metrics
}

func NewDispatcher(
	sub *Subscriber,
	blocks *BlockContext,
	an Analyzer,
	cfg DispatcherConfig,
	logger *zap.Logger,
	metrics *observability.Metrics,
) *Dispatcher {
	if blocks == nil {
		blocks = NewBlockContext()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		sub:      sub,
		blocks:   blocks,
		analyzer: an,
		decimals: cfg.TokenDecimals,
		logger:   logger,
		metrics:  metrics,
	}
	if cfg.AnalysisWorkers > 0 {
		d.workers = semaphore.NewWeighted(int64(cfg.AnalysisWorkers))
	}
	return d
}

// Run consumes events until the bus closes or ctx is canceled. Per-event
// failures are logged and never end the loop.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.sub.Close()
	defer d.inflight.Wait()

	for {
		ev, err := d.sub.Recv(ctx)
		if err != nil {
			var lagged *LaggedError
			if errors.As(err, &lagged) {
				d.metrics.ObserveLag(lagged.Skipped)
				d.logger.Warn("dispatcher lagged behind bus", zap.Uint64("skipped", lagged.Skipped))
				continue
			}
			return err
		}
		d.safely(ev.Kind.String(), func() { d.handle(ctx, ev) })
	}
}

func (d *Dispatcher) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventNewBlock:
		d.handleBlock(ev.Block)
	case EventTransaction:
		d.handleTransaction(ctx, ev.Tx)
	default:
		d.logger.Warn("unknown event kind", zap.Uint8("kind", uint8(ev.Kind)))
	}
}

func (d *Dispatcher) handleBlock(block model.NewBlock) {
	prev := d.blocks.Update(block)
	if !prev.IsZero() && block.Number < prev.Number {
		d.logger.Debug("block number went backwards",
			zap.Uint64("previous", prev.Number),
			zap.Uint64("block", block.Number),
		)
	}

	next := PredictNextBaseFee(block)
	d.metrics.ObserveBlock(block.Number, block.BaseFee(), next)
	d.logger.Info("new block",
		zap.Uint64("block", block.Number),
		zap.Uint64("gas_used", block.GasUsed),
		zap.Uint64("gas_limit", block.GasLimit),
		zap.String("base_fee", block.BaseFee().String()),
		zap.String("next_base_fee", next.String()),
		zap.Uint64("timestamp", block.Timestamp),
	)
}

func (d *Dispatcher) handleTransaction(ctx context.Context, tx *types.Transaction) {
	if tx == nil {
		return
	}
	current := d.blocks.Current()
	admission := Admit(tx, current)
	d.metrics.ObserveDecision(admission.Decision)
	if admission.Decision != DecisionAdmitted {
		return
	}
	if d.analyzer == nil {
		return
	}

	if d.workers == nil {
		d.analyze(ctx, tx, current.Number)
		return
	}
	if err := d.workers.Acquire(ctx, 1); err != nil {
		return
	}
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		defer d.workers.Release(1)
		d.safely("analysis", func() { d.analyze(ctx, tx, current.Number) })
	}()
}

func (d *Dispatcher) analyze(ctx context.Context, tx *types.Transaction, blockNumber uint64) {
	start := time.Now()
	report, err := d.analyzer.Analyze(ctx, tx, blockNumber)
	if err != nil {
		kind := "other"
		switch {
		case errors.Is(err, analyzer.ErrTraceUnavailable):
			kind = "trace"
		case errors.Is(err, analyzer.ErrSlotDecode):
			kind = "slot_decode"
		case errors.Is(err, context.Canceled):
			return
		}
		d.metrics.ObserveAnalysisError(kind)
		d.logger.Warn("analysis failed",
			zap.String("tx", tx.Hash().Hex()),
			zap.Uint64("block", blockNumber),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return
	}
	d.metrics.ObserveAnalysis(report.Outcome, time.Since(start).Seconds())

	d.logger.Info("transaction analyzed",
		zap.String("tx", report.TxHash.Hex()),
		zap.Uint64("block", report.BlockNumber),
		zap.String("outcome", report.Outcome),
		zap.Int("touched_pools", report.TouchedPools),
	)
	for _, change := range report.Changes {
		d.metrics.ObserveBalanceChange(change.Direction)
		d.logger.Info("pool balance change",
			zap.String("tx", change.TxHash),
			zap.String("pool", change.Pool),
			zap.String("pool_kind", change.PoolKind),
			zap.String("token", change.Token),
			zap.String("before", change.Before),
			zap.String("after", change.After),
			zap.String("delta", d.formatDelta(change.Delta)),
			zap.String("direction", change.Direction),
		)
	}
}

func (d *Dispatcher) formatDelta(raw string) string {
	delta, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return model.FormatTokenAmount(delta, d.decimals)
}

func (d *Dispatcher) safely(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.ObservePanic()
			d.logger.Error("event handler panicked",
				zap.String("handler", what),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}
