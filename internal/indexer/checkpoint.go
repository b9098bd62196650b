package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
)

// Checkpoint tracks the last processed block for a factory set.
type Checkpoint struct {
	LastProcessedBlock uint64 `json:"last_processed_block"`
	Factories          string `json:"factories"`
	UpdatedAt          string `json:"updated_at"`
}

// Checkpointer persists sync progress. Load only reports a checkpoint taken
// for the factory set identified by fingerprint.
type Checkpointer interface {
	Load(ctx context.Context, fingerprint string) (Checkpoint, bool, error)
	Save(ctx context.Context, cp Checkpoint) error
}

// FactoriesFingerprint identifies a factory set independent of order.
func FactoriesFingerprint(factories []Factory) string {
	keys := make([]string, 0, len(factories))
	for _, f := range factories {
		keys = append(keys, strings.ToLower(f.String()))
	}
	sort.Strings(keys)
	return crypto.Keccak256Hash([]byte(strings.Join(keys, ","))).Hex()[:18]
}

// CheckpointStore persists checkpoints to disk.
type CheckpointStore struct {
	path    string
	enabled bool
}

func NewCheckpointStore(path string, enabled bool) *CheckpointStore {
	return &CheckpointStore{path: path, enabled: enabled}
}

func (c *CheckpointStore) Load(_ context.Context, fingerprint string) (Checkpoint, bool, error) {
	if !c.enabled {
		return Checkpoint{}, false, nil
	}

	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return Checkpoint{}, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Factories != fingerprint {
		return Checkpoint{}, false, nil
	}

	return cp, true, nil
}

func (c *CheckpointStore) Save(_ context.Context, cp Checkpoint) error {
	if !c.enabled {
		return nil
	}

	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	if cp.UpdatedAt == "" {
		cp.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// StateStore is a named block cursor, such as the indexer_state table.
type StateStore interface {
	LoadState(ctx context.Context, name string) (uint64, bool, error)
	SaveState(ctx context.Context, name string, block uint64) error
}

// DBCheckpointStore keeps checkpoints in a StateStore. The factory fingerprint
// is part of the row name, so each factory set has its own cursor.
type DBCheckpointStore struct {
	Store StateStore
	Name  string
}

func (s *DBCheckpointStore) rowName(fingerprint string) string {
	return s.Name + ":" + fingerprint
}

func (s *DBCheckpointStore) Load(ctx context.Context, fingerprint string) (Checkpoint, bool, error) {
	if s == nil || s.Store == nil {
		return Checkpoint{}, false, nil
	}
	block, ok, err := s.Store.LoadState(ctx, s.rowName(fingerprint))
	if err != nil || !ok {
		return Checkpoint{}, false, err
	}
	return Checkpoint{LastProcessedBlock: block, Factories: fingerprint}, true, nil
}

func (s *DBCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	if s == nil || s.Store == nil {
		return nil
	}
	return s.Store.SaveState(ctx, s.rowName(cp.Factories), cp.LastProcessedBlock)
}
