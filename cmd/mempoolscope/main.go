package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"mempoolScope/internal/config"
	"mempoolScope/internal/indexer"
)

func main() {
	root := &cobra.Command{
		Use:          "mempoolscope",
		Short:        "Mempool watcher for pool balance changes of a token",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream blocks and pending transactions and classify pool balance changes",
		RunE:  runWatch,
	}
	addNodeFlags(watchCmd.Flags())
	addPoolFlags(watchCmd.Flags())
	addSyncFlags(watchCmd.Flags())
	watchCmd.Flags().String("watch-token", config.DefaultWatchToken, "token whose pool balances are watched")
	watchCmd.Flags().Uint64("balance-slot", 3, "storage index of the token's balance mapping")
	watchCmd.Flags().Bool("report-decreases", false, "also report pool balance decreases")
	watchCmd.Flags().Int("bus-capacity", 512, "events retained for slow subscribers")
	watchCmd.Flags().Int("resolve-concurrency", 256, "max in-flight pending transaction lookups")
	watchCmd.Flags().Int("analysis-workers", 0, "concurrent analyses, 0 analyzes inline")
	watchCmd.Flags().Bool("fail-fast", true, "stop all tasks when one exits")
	watchCmd.Flags().Bool("sync-enabled", true, "sync factory pools before streaming")
	watchCmd.Flags().String("metrics-addr", "", "listen address for /metrics, empty disables")
	root.AddCommand(watchCmd)

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync pools from factory creation logs into the pool store",
		RunE:  runSync,
	}
	addNodeFlags(syncCmd.Flags())
	addPoolFlags(syncCmd.Flags())
	addSyncFlags(syncCmd.Flags())
	syncCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	root.AddCommand(syncCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List registered pools holding a token",
		RunE:  runPools,
	}
	addNodeFlags(poolsCmd.Flags())
	addPoolFlags(poolsCmd.Flags())
	poolsCmd.Flags().String("watch-token", config.DefaultWatchToken, "token to list pools for")
	poolsCmd.Flags().String("seed-out", "", "write the listed pools to a YAML seed file")
	root.AddCommand(poolsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addNodeFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "node RPC URL (ws or ipc for watch)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPoolFlags(flags *pflag.FlagSet) {
	flags.String("pools-out", "./data/pools.jsonl", "JSONL pool store path")
	flags.String("pg-dsn", "", "Postgres DSN for the pool store")
	flags.String("sqlite-path", "", "SQLite pool store path")
	flags.String("pools-seed", "", "YAML file with extra pools")
}

func addSyncFlags(flags *pflag.FlagSet) {
	flags.StringSlice("factory", indexer.DefaultFactories, "factories as kind:address:startBlock")
	flags.Uint64("batch-size", 2000, "blocks per log query")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	flags.Bool("checkpoint-enabled", true, "enable checkpointing")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
