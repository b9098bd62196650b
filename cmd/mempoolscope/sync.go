package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mempoolScope/internal/chain"
)

func runSync(cmd *cobra.Command, _ []string) error {
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

	result, err := runPoolSync(ctx, cfg, client, backend, logger)
	if err != nil {
		return err
	}

	logger.Info("pool sync done",
		zap.String("store", backend.name),
		zap.Uint64("from", result.From),
		zap.Uint64("to", result.To),
		zap.Int("pools", result.Pools),
		zap.Int("decode_errors", result.DecodeErrors),
	)
	return nil
}
