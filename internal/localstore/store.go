// Package localstore keeps the wallet snapshot in a single-file SQLite key/value table.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"scrazino/internal/ledger"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
  key        TEXT PRIMARY KEY,
  value      TEXT NOT NULL,
  updated_at INTEGER NOT NULL
)`

// Store implements ledger.Store on top of SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (or creates) the database file and ensures the kv table exists.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) Load(ctx context.Context) (ledger.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Snapshot{}, false, err
	}
	balance, ok, err := s.get(ctx, ledger.BalanceKey)
	if err != nil || !ok {
		return ledger.Snapshot{}, false, err
	}
	transactions, _, err := s.get(ctx, ledger.TransactionsKey)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	snap, err := ledger.DecodeSnapshot(balance, transactions)
	if err != nil {
		return ledger.Snapshot{}, false, err
	}
	return snap, true, nil
}

// Save writes both keys in one transaction.
func (s *Store) Save(ctx context.Context, snap ledger.Snapshot) error {
	balance, transactions, err := ledger.EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC().UnixMilli()
	for _, kv := range [][2]string{
		{ledger.BalanceKey, balance},
		{ledger.TransactionsKey, transactions},
	} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			kv[0], kv[1], now,
		); err != nil {
			return fmt.Errorf("put %s: %w", kv[0], err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}
