package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"mempoolScope/internal/indexer"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.Int("bus-capacity", 512, "")
	flags.Bool("report-decreases", false, "")
	flags.StringSlice("factory", nil, "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", testFlags())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WatchToken != DefaultWatchToken || cfg.BalanceSlot != 3 {
		t.Fatalf("watch defaults mismatch: %+v", cfg)
	}
	if cfg.BusCapacity != 512 || cfg.ResolveConcurrency != 256 || cfg.AnalysisWorkers != 0 {
		t.Fatalf("pipeline defaults mismatch: %+v", cfg)
	}
	if !cfg.FailFast || cfg.ReportDecreases || !cfg.SyncEnabled {
		t.Fatalf("bool defaults mismatch: %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Factories, indexer.DefaultFactories) {
		t.Fatalf("factory defaults mismatch: %v", cfg.Factories)
	}
	if cfg.RetryBackoff != 500*time.Millisecond || cfg.PoolsOut != "./data/pools.jsonl" {
		t.Fatalf("sync defaults mismatch: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`rpc: ws://file:8546
bus-capacity: 128
report-decreases: true
factory:
  - uniswapv2:0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f:10000835
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("MEMPOOLSCOPE_BUS_CAPACITY", "256")
	t.Setenv("MEMPOOLSCOPE_ANALYSIS_WORKERS", "4")

	flags := testFlags()
	if err := flags.Parse([]string{"--rpc", "ws://flag:8546"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(path, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "ws://flag:8546" {
		t.Fatalf("flag should win, got %s", cfg.RPCURL)
	}
	if cfg.BusCapacity != 256 || cfg.AnalysisWorkers != 4 {
		t.Fatalf("env should win over file: %+v", cfg)
	}
	if !cfg.ReportDecreases {
		t.Fatalf("file value ignored")
	}
	if len(cfg.Factories) != 1 || cfg.Factories[0] != "uniswapv2:0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f:10000835" {
		t.Fatalf("factories mismatch: %v", cfg.Factories)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("MEMPOOLSCOPE_BUS_CAPACITY", "0")
	if _, err := Load("", testFlags()); err == nil {
		t.Fatalf("expected error for zero bus capacity")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
