package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"familytree/application/ports"
	pkgerrors "familytree/pkg/errors"
)

var _ ports.KeyValueStore = (*SQLiteStore)(nil)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps snapshots in a single-table SQLite database
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens a SQLite database at the specified path with WAL enabled
// and creates the key/value table if needed.
func OpenSQLite(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("opening database", zap.String("path", path))

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, pkgerrors.NewStorageError("open", err).WithDetail("path", path)
	}

	// Enable WAL mode for concurrent reads during writes
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, pkgerrors.NewStorageError("pragma", err).WithDetail("pragma", pragma)
		}
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, pkgerrors.NewStorageError("migrate", err)
	}

	logger.Info("database opened successfully", zap.String("path", path), zap.Bool("wal_mode", true))
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get returns the value for key
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.NewNotFoundError("key").WithDetail("key", key)
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("get", err).WithDetail("key", key)
	}
	return value, nil
}

// Set upserts the value for key
func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		if strings.Contains(err.Error(), "database or disk is full") {
			return pkgerrors.NewQuotaExceededError(key, len(value), 0).WithCause(err)
		}
		return pkgerrors.NewStorageError("set", err).WithDetail("key", key)
	}
	return nil
}

// Delete removes key
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return pkgerrors.NewStorageError("delete", err).WithDetail("key", key)
	}
	return nil
}

// Keys lists keys with prefix
func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`, len(prefix), prefix)
	if err != nil {
		return nil, pkgerrors.NewStorageError("keys", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, pkgerrors.NewStorageError("scan", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewStorageError("keys", err)
	}
	return keys, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
