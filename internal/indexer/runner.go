package indexer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"mempoolScope/internal/dex"
	"mempoolScope/internal/model"
	"mempoolScope/internal/storage"
)

// LogSource is the part of the node client used by the sync.
type LogSource interface {
	GetChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// SyncConfig holds runtime settings for the pool sync.
type SyncConfig struct {
	Factories    []Factory
	ToBlock      uint64
	BatchSize    uint64
	MaxRetries   int
	RetryBackoff time.Duration
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	From         uint64
	To           uint64
	Pools        int
	DecodeErrors int
}

// Runner scans factory creation logs and writes discovered pools to storage.
type Runner struct {
	cfg        SyncConfig
	chain      LogSource
	storage    storage.PoolWriter
	checkpoint Checkpointer
	decoder    *dex.FactoryDecoder
	logger     *zap.Logger
	factories  map[common.Address]Factory
	seen       map[common.Address]struct{}
}

// NewRunner builds a Runner with its dependencies. checkpoint may be nil.
func NewRunner(cfg SyncConfig, chainClient LogSource, sink storage.PoolWriter, checkpoint Checkpointer, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := dex.NewFactoryDecoder()
	if err != nil {
		return nil, err
	}
	factories := make(map[common.Address]Factory, len(cfg.Factories))
	for _, f := range cfg.Factories {
		factories[f.Address] = f
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		storage:    sink,
		checkpoint: checkpoint,
		decoder:    decoder,
		logger:     logger,
		factories:  factories,
		seen:       make(map[common.Address]struct{}),
	}, nil
}

// Run executes the sync loop up to the configured or latest block.
func (r *Runner) Run(ctx context.Context) (SyncResult, error) {
	var result SyncResult
	if r.chain == nil {
		return result, fmt.Errorf("chain client is nil")
	}
	if r.storage == nil {
		return result, fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return result, fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Factories) == 0 {
		return result, fmt.Errorf("at least one factory is required")
	}

	chainID, err := r.chain.GetChainID(ctx)
	if err != nil {
		return result, fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return result, fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	addresses := make([]common.Address, 0, len(r.cfg.Factories))
	topics := make([]common.Hash, 0, 2)
	topicSeen := make(map[common.Hash]struct{})
	from := r.cfg.Factories[0].StartBlock
	for _, f := range r.cfg.Factories {
		addresses = append(addresses, f.Address)
		if f.StartBlock < from {
			from = f.StartBlock
		}
		topic, err := r.decoder.Topic0(f.Kind)
		if err != nil {
			return result, fmt.Errorf("factory %s: %w", f.Address.Hex(), err)
		}
		if _, ok := topicSeen[topic]; !ok {
			topicSeen[topic] = struct{}{}
			topics = append(topics, topic)
		}
	}

	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return result, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	fingerprint := FactoriesFingerprint(r.cfg.Factories)
	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.Load(ctx, fingerprint)
		if err != nil {
			return result, err
		}
		if ok && cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}
	result.From, result.To = from, to

	if from > to {
		r.logger.Info("pools up to date", zap.Uint64("from", from), zap.Uint64("to", to))
		return result, nil
	}

	ranges, err := Batches(from, to, r.cfg.BatchSize)
	if err != nil {
		return result, err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		r.logger.Debug("fetch factory logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To, addresses, topics)
		if err != nil {
			return result, fmt.Errorf("filter logs: %w", err)
		}

		pools := make([]model.Pool, 0)
		for _, log := range logs {
			pool, ok, err := r.poolFromLog(chainIDValue, log)
			if err != nil {
				result.DecodeErrors++
				r.logger.Warn("decode factory log failed",
					zap.Error(err),
					zap.Uint64("block_number", log.BlockNumber),
					zap.String("tx", log.TxHash.Hex()),
				)
				continue
			}
			if !ok {
				continue
			}
			pools = append(pools, pool)
		}

		if err := r.storage.PutPoolBatch(ctx, pools); err != nil {
			return result, fmt.Errorf("store pools: %w", err)
		}
		result.Pools += len(pools)

		if r.checkpoint != nil {
			cp := Checkpoint{LastProcessedBlock: blockRange.To, Factories: fingerprint}
			if err := r.checkpoint.Save(ctx, cp); err != nil {
				return result, err
			}
		}

		if len(pools) > 0 {
			r.logger.Info("batch complete", zap.Int("pools", len(pools)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
		}
	}

	r.logger.Info("pool sync complete",
		zap.Int("pools", result.Pools),
		zap.Int("decode_errors", result.DecodeErrors),
		zap.Uint64("from", result.From),
		zap.Uint64("to", result.To),
	)
	return result, nil
}

// poolFromLog returns ok=false for logs that are not creation events of a configured factory.
func (r *Runner) poolFromLog(chainID uint64, log types.Log) (model.Pool, bool, error) {
	if log.Removed || len(log.Topics) == 0 {
		return model.Pool{}, false, nil
	}
	factory, ok := r.factories[log.Address]
	if !ok || log.BlockNumber < factory.StartBlock {
		return model.Pool{}, false, nil
	}
	topic, err := r.decoder.Topic0(factory.Kind)
	if err != nil || log.Topics[0] != topic {
		return model.Pool{}, false, nil
	}

	pool, err := r.decoder.Decode(log)
	if err != nil {
		return model.Pool{}, false, err
	}
	address := common.HexToAddress(pool.Address)
	if _, dup := r.seen[address]; dup {
		return model.Pool{}, false, nil
	}
	r.seen[address] = struct{}{}
	return buildPool(chainID, factory, pool), true, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topics []common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := newRetryPolicy(r.cfg.MaxRetries, r.cfg.RetryBackoff).do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, addresses, topics)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}
