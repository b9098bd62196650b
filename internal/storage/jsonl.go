package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mempoolScope/internal/model"
)

// JsonlStorage keeps pool records in a JSONL file.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

// PutPoolBatch appends a batch of pool records as JSON lines.
func (s *JsonlStorage) PutPoolBatch(_ context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, pool := range pools {
		line, err := json.Marshal(pool)
		if err != nil {
			return fmt.Errorf("marshal pool: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write pool: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// LoadPools reads every record. A missing file yields no pools; when an address
// appears more than once the first record wins.
func (s *JsonlStorage) LoadPools(_ context.Context) ([]model.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open pools file: %w", err)
	}
	defer file.Close()

	pools := make([]model.Pool, 0)
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var pool model.Pool
		if err := json.Unmarshal([]byte(line), &pool); err != nil {
			return nil, fmt.Errorf("parse pools file line %d: %w", lineNo, err)
		}
		key := strings.ToLower(pool.Address)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		pools = append(pools, pool)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pools file: %w", err)
	}
	return pools, nil
}
