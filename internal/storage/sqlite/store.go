package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"mempoolScope/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	chain_id         INTEGER NOT NULL,
	pool_address     TEXT    NOT NULL,
	kind             TEXT    NOT NULL,
	token0           TEXT    NOT NULL,
	token1           TEXT    NOT NULL,
	fee              INTEGER NOT NULL DEFAULT 0,
	tick_spacing     INTEGER NOT NULL DEFAULT 0,
	factory          TEXT    NOT NULL DEFAULT '',
	first_seen_block INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (chain_id, pool_address)
);
`

// Store keeps pool records in a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// PutPoolBatch inserts or updates pool records in one transaction.
func (s *Store) PutPoolBatch(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pools (chain_id, pool_address, kind, token0, token1, fee, tick_spacing, factory, first_seen_block)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (chain_id, pool_address) DO UPDATE SET
			kind = excluded.kind,
			token0 = excluded.token0,
			token1 = excluded.token1,
			fee = excluded.fee,
			tick_spacing = excluded.tick_spacing,
			factory = excluded.factory,
			first_seen_block = MIN(pools.first_seen_block, excluded.first_seen_block)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, pool := range pools {
		if _, err := stmt.ExecContext(ctx,
			int64(pool.ChainID),
			pool.Address,
			pool.Kind,
			pool.Token0,
			pool.Token1,
			int64(pool.Fee),
			pool.TickSpacing,
			pool.Factory,
			int64(pool.FirstSeenBlock),
		); err != nil {
			return fmt.Errorf("insert pool %s: %w", pool.Address, err)
		}
	}
	return tx.Commit()
}

// LoadPools returns every stored pool ordered by discovery block.
func (s *Store) LoadPools(ctx context.Context) ([]model.Pool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chain_id, pool_address, kind, token0, token1, fee, tick_spacing, factory, first_seen_block
		FROM pools
		ORDER BY first_seen_block, pool_address
	`)
	if err != nil {
		return nil, fmt.Errorf("query pools: %w", err)
	}
	defer rows.Close()

	pools := make([]model.Pool, 0)
	for rows.Next() {
		var (
			chainID, fee, firstSeen int64
			tickSpacing             int32
			pool                    model.Pool
		)
		if err := rows.Scan(&chainID, &pool.Address, &pool.Kind, &pool.Token0, &pool.Token1, &fee, &tickSpacing, &pool.Factory, &firstSeen); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pool.ChainID = uint64(chainID)
		pool.Fee = uint32(fee)
		pool.TickSpacing = tickSpacing
		pool.FirstSeenBlock = uint64(firstSeen)
		pools = append(pools, pool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pools: %w", err)
	}
	return pools, nil
}
