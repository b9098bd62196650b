package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"mempoolScope/internal/observability"
)

// DefaultResolveConcurrency bounds in-flight pending transaction lookups.
const DefaultResolveConcurrency = 256

// ErrSubscriptionClosed is returned when a node subscription ends without an error.
var ErrSubscriptionClosed = errors.New("subscription closed")

// HeadSource delivers new block headers.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
}

// PendingSource delivers pending transaction hashes and resolves them.
type PendingSource interface {
	SubscribePendingTransactions(ctx context.Context, ch chan<- common.Hash) (ethereum.Subscription, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// BlockProducer publishes a NewBlock event for every numbered header.
type BlockProducer struct {
	source HeadSource
	bus    *Bus
	logger *zap.Logger
}

func NewBlockProducer(source HeadSource, bus *Bus, logger *zap.Logger) *BlockProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockProducer{source: source, bus: bus, logger: logger}
}

// Run streams headers until the subscription ends or ctx is canceled.
func (p *BlockProducer) Run(ctx context.Context) error {
	headers := make(chan *types.Header, 16)
	sub, err := p.source.SubscribeNewHead(ctx, headers)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-sub.Err():
			return subscriptionEnded("new heads", err, ok)
		case header := <-headers:
			block, ok := blockFromHeader(header)
			if !ok {
				p.logger.Debug("skip header without number")
				continue
			}
			p.bus.Publish(NewBlockEvent(block))
		}
	}
}

// TxProducer resolves pending transaction hashes and publishes the bodies.
type TxProducer struct {
	source      PendingSource
	bus         *Bus
	concurrency int64
	logger      *zap.Logger
	metrics     *observability.Metrics
}

func NewTxProducer(source PendingSource, bus *Bus, concurrency int, logger *zap.Logger, metrics *observability.Metrics) *TxProducer {
	if concurrency <= 0 {
		concurrency = DefaultResolveConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TxProducer{
		source:      source,
		bus:         bus,
		concurrency: int64(concurrency),
		logger:      logger,
		metrics:     metrics,
	}
}

// Run streams pending hashes until the subscription ends or ctx is canceled.
// In-flight lookups finish before Run returns.
func (p *TxProducer) Run(ctx context.Context) error {
	hashes := make(chan common.Hash, 256)
	sub, err := p.source.SubscribePendingTransactions(ctx, hashes)
	if err != nil {
		return fmt.Errorf("subscribe pending transactions: %w", err)
	}
	defer sub.Unsubscribe()

	sem := semaphore.NewWeighted(p.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-sub.Err():
			return subscriptionEnded("pending transactions", err, ok)
		case hash := <-hashes:
			if err := sem.Acquire(ctx, 1); err != nil {
				return err
			}
			wg.Add(1)
			go func(hash common.Hash) {
				defer wg.Done()
				defer sem.Release(1)
				p.resolve(ctx, hash)
			}(hash)
		}
	}
}

func (p *TxProducer) resolve(ctx context.Context, hash common.Hash) {
	tx, _, err := p.source.TransactionByHash(ctx, hash)
	if err != nil {
		reason := "error"
		if errors.Is(err, ethereum.NotFound) {
			reason = "not_found"
		}
		p.metrics.ObserveResolutionFailure(reason)
		p.logger.Debug("resolve pending transaction failed", zap.String("tx", hash.Hex()), zap.Error(err))
		return
	}
	if tx == nil {
		p.metrics.ObserveResolutionFailure("not_found")
		return
	}
	p.bus.Publish(TransactionEvent(tx))
}

func subscriptionEnded(name string, err error, ok bool) error {
	if !ok || err == nil {
		return fmt.Errorf("%s: %w", name, ErrSubscriptionClosed)
	}
	return fmt.Errorf("%s subscription: %w", name, err)
}
