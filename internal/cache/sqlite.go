package cache

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQLite driver for the persistent cache backend.
	_ "github.com/mattn/go-sqlite3"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	target      TEXT NOT NULL,
	value       BLOB NOT NULL,
	stored_at   INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	last_used   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_target ON cache_entries(target);
CREATE INDEX IF NOT EXISTS idx_cache_entries_last_used ON cache_entries(last_used);
`

// sqliteStore is the persistent Store backend. It survives restarts and
// can be shared by multiple processes through SQLite's WAL mode. The
// target column doubles as the secondary index for InvalidateTarget.
type sqliteStore struct {
	db         *sql.DB
	maxEntries int
}

// NewSQLiteStore opens (or creates) a SQLite-backed store at path.
// WAL mode and a busy timeout keep concurrent get/put contention cheap.
func NewSQLiteStore(path string, maxEntries int) (Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	db.SetMaxOpenConns(4)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping cache database: %w", err)
	}
	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply cache schema: %w", err)
	}

	return &sqliteStore{db: db, maxEntries: maxEntries}, nil
}

func (s *sqliteStore) Get(ctx context.Context, key string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT target, value, stored_at, ttl_seconds FROM cache_entries WHERE key = ?`, key)

	var (
		entry      Entry
		storedUnix int64
		ttlSeconds int64
	)
	entry.Key = key
	err := row.Scan(&entry.Target, &entry.Value, &storedUnix, &ttlSeconds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}
	entry.StoredAt = time.Unix(storedUnix, 0)
	entry.TTL = time.Duration(ttlSeconds) * time.Second

	// Touch for LRU ordering; best effort.
	_, _ = s.db.ExecContext(ctx,
		`UPDATE cache_entries SET last_used = ? WHERE key = ?`, time.Now().UnixNano(), key)

	return &entry, nil
}

func (s *sqliteStore) Put(ctx context.Context, entry *Entry) error {
	now := time.Now().UnixNano()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, target, value, stored_at, ttl_seconds, last_used)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   target = excluded.target,
		   value = excluded.value,
		   stored_at = excluded.stored_at,
		   ttl_seconds = excluded.ttl_seconds,
		   last_used = excluded.last_used`,
		entry.Key, entry.Target, entry.Value,
		entry.StoredAt.Unix(), int64(entry.TTL.Seconds()), now)
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	if s.maxEntries > 0 {
		if err := s.evictLRU(ctx); err != nil {
			return err
		}
	}
	return nil
}

// evictLRU trims the table down to maxEntries by removing the least
// recently used rows.
func (s *sqliteStore) evictLRU(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key IN (
			SELECT key FROM cache_entries ORDER BY last_used DESC LIMIT -1 OFFSET ?
		)`, s.maxEntries)
	if err != nil {
		return fmt.Errorf("cache eviction failed: %w", err)
	}
	return nil
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

func (s *sqliteStore) DeleteTarget(ctx context.Context, target string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE target = ?`, target)
	if err != nil {
		return 0, fmt.Errorf("cache target delete failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

func (s *sqliteStore) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return n, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
