package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mempoolScope/internal/chain"
	"mempoolScope/internal/indexer"
	"mempoolScope/internal/model"
	"mempoolScope/internal/registry"
	"mempoolScope/internal/storage"
)

func runPools(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	token, err := indexer.ParseAddress(cfg.WatchToken)
	if err != nil {
		return fmt.Errorf("watch token: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// The node is only needed to complete seed entries without tokens.
	var client *chain.Client
	if cfg.RPCURL != "" {
		client, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return err
		}
		defer client.Close()
	}

	backend, err := openPoolBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	reg, err := loadRegistry(ctx, cfg, client, backend, logger)
	if err != nil {
		return err
	}
	pools := reg.PoolsWith(token)

	printPools(pools)
	logger.Info("pools listed",
		zap.String("token", token.Hex()),
		zap.String("store", backend.name),
		zap.Int("registered", reg.Len()),
		zap.Int("duplicates", reg.Duplicates()),
		zap.Int("matched", len(pools)),
	)

	seedOut, _ := cmd.Flags().GetString("seed-out")
	if seedOut == "" {
		return nil
	}
	if err := storage.WriteSeedFile(seedOut, toModelPools(pools)); err != nil {
		return err
	}
	logger.Info("seed file written", zap.String("path", seedOut), zap.Int("pools", len(pools)))
	return nil
}

func printPools(pools []registry.Pool) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Pool", "Kind", "Token0", "Token1", "Fee", "TickSpacing")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)
	for _, pool := range pools {
		tbl.AddRow(
			strings.ToLower(pool.Address.Hex()),
			pool.Kind,
			pool.Token0.Hex(),
			pool.Token1.Hex(),
			pool.Fee,
			pool.TickSpacing,
		)
	}
	tbl.Print()
}

func toModelPools(pools []registry.Pool) []model.Pool {
	out := make([]model.Pool, 0, len(pools))
	for _, pool := range pools {
		out = append(out, model.Pool{
			Kind:        pool.Kind,
			Address:     pool.Address.Hex(),
			Token0:      pool.Token0.Hex(),
			Token1:      pool.Token1.Hex(),
			Fee:         pool.Fee,
			TickSpacing: pool.TickSpacing,
		})
	}
	return out
}
