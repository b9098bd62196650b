package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mempoolScope/internal/analyzer"
	"mempoolScope/internal/chain"
	"mempoolScope/internal/dex"
	"mempoolScope/internal/indexer"
	"mempoolScope/internal/observability"
	"mempoolScope/internal/pipeline"
)

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	token, err := indexer.ParseAddress(cfg.WatchToken)
	if err != nil {
		return fmt.Errorf("watch token: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	backend, err := openPoolBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	if cfg.SyncEnabled {
		result, err := runPoolSync(ctx, cfg, client, backend, logger)
		if err != nil {
			return fmt.Errorf("pool sync: %w", err)
		}
		logger.Info("pool sync done",
			zap.Uint64("from", result.From),
			zap.Uint64("to", result.To),
			zap.Int("pools", result.Pools),
			zap.Int("decode_errors", result.DecodeErrors),
		)
	}

	reg, err := loadRegistry(ctx, cfg, client, backend, logger)
	if err != nil {
		return err
	}
	tokenPools := reg.PoolsWith(token)

	meta, err := dex.FetchTokenMeta(ctx, client, token, logger)
	if err != nil {
		logger.Warn("token metadata unavailable", zap.String("token", token.Hex()), zap.Error(err))
	}
	logger.Info("watch start",
		zap.String("token", token.Hex()),
		zap.String("symbol", meta.Symbol),
		zap.Uint8("decimals", meta.Decimals),
		zap.Uint64("balance_slot", cfg.BalanceSlot),
		zap.Int("pools", reg.Len()),
		zap.Int("token_pools", len(tokenPools)),
		zap.Int("bus_capacity", cfg.BusCapacity),
		zap.Int("resolve_concurrency", cfg.ResolveConcurrency),
		zap.Int("analysis_workers", cfg.AnalysisWorkers),
		zap.Bool("fail_fast", cfg.FailFast),
	)
	if len(tokenPools) == 0 {
		logger.Warn("no registered pool holds the watched token", zap.String("token", token.Hex()))
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(promRegistry)

	bus := pipeline.NewBus(cfg.BusCapacity, metrics)
	defer bus.Close()

	an := analyzer.New(client, reg, analyzer.Config{
		WatchToken:      token,
		BalanceSlot:     cfg.BalanceSlot,
		ReportDecreases: cfg.ReportDecreases,
	})

	// The dispatcher subscribes before any producer can publish.
	dispatcher := pipeline.NewDispatcher(
		bus.Subscribe(),
		pipeline.NewBlockContext(),
		an,
		pipeline.DispatcherConfig{AnalysisWorkers: cfg.AnalysisWorkers, TokenDecimals: meta.Decimals},
		logger.Named("dispatcher"),
		metrics,
	)
	blocks := pipeline.NewBlockProducer(client, bus, logger.Named("blocks"))
	txs := pipeline.NewTxProducer(client, bus, cfg.ResolveConcurrency, logger.Named("transactions"), metrics)

	sup := pipeline.NewSupervisor(ctx, pipeline.SupervisorOptions{FailFast: cfg.FailFast}, logger.Named("supervisor"), metrics)
	sup.Go("dispatcher", dispatcher.Run)
	sup.Go("blocks", blocks.Run)
	sup.Go("transactions", txs.Run)
	if cfg.MetricsAddr != "" {
		sup.Go("metrics", func(ctx context.Context) error {
			return observability.Serve(ctx, cfg.MetricsAddr, promRegistry, logger.Named("metrics"))
		})
	}

	if err := sup.Wait(); err != nil {
		return err
	}
	logger.Info("watch stopped")
	return nil
}
