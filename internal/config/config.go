package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"mempoolScope/internal/indexer"
)

// DefaultWatchToken is WETH on mainnet.
const DefaultWatchToken = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL string

	WatchToken         string
	BalanceSlot        uint64
	ReportDecreases    bool
	BusCapacity        int
	ResolveConcurrency int
	AnalysisWorkers    int
	FailFast           bool

	Factories         []string
	SyncEnabled       bool
	ToBlock           uint64
	BatchSize         uint64
	MaxRetries        int
	RetryBackoff      time.Duration
	PoolsOut          string
	PGDSN             string
	SQLitePath        string
	PoolsSeed         string
	Checkpoint        string
	CheckpointEnabled bool

	MetricsAddr string
	LogLevel    string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEMPOOLSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("watch-token", DefaultWatchToken)
	v.SetDefault("balance-slot", uint64(3))
	v.SetDefault("report-decreases", false)
	v.SetDefault("bus-capacity", 512)
	v.SetDefault("resolve-concurrency", 256)
	v.SetDefault("analysis-workers", 0)
	v.SetDefault("fail-fast", true)
	v.SetDefault("factory", indexer.DefaultFactories)
	v.SetDefault("sync-enabled", true)
	v.SetDefault("batch-size", uint64(2000))
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("pools-out", "./data/pools.jsonl")
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:             v.GetString("rpc"),
		WatchToken:         v.GetString("watch-token"),
		BalanceSlot:        v.GetUint64("balance-slot"),
		ReportDecreases:    v.GetBool("report-decreases"),
		BusCapacity:        v.GetInt("bus-capacity"),
		ResolveConcurrency: v.GetInt("resolve-concurrency"),
		AnalysisWorkers:    v.GetInt("analysis-workers"),
		FailFast:           v.GetBool("fail-fast"),
		Factories:          getStringSlice(v, "factory"),
		SyncEnabled:        v.GetBool("sync-enabled"),
		ToBlock:            v.GetUint64("to"),
		BatchSize:          v.GetUint64("batch-size"),
		MaxRetries:         v.GetInt("max-retries"),
		RetryBackoff:       v.GetDuration("retry-backoff"),
		PoolsOut:           v.GetString("pools-out"),
		PGDSN:              v.GetString("pg-dsn"),
		SQLitePath:         v.GetString("sqlite-path"),
		PoolsSeed:          v.GetString("pools-seed"),
		Checkpoint:         v.GetString("checkpoint"),
		CheckpointEnabled:  v.GetBool("checkpoint-enabled"),
		MetricsAddr:        v.GetString("metrics-addr"),
		LogLevel:           v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BusCapacity <= 0 {
		return fmt.Errorf("bus-capacity must be greater than zero")
	}
	if c.ResolveConcurrency <= 0 {
		return fmt.Errorf("resolve-concurrency must be greater than zero")
	}
	if c.AnalysisWorkers < 0 {
		return fmt.Errorf("analysis-workers must not be negative")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
