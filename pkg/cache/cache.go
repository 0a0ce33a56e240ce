package cache

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"sync"

	"groundtrack/pkg/db"
)

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// SQLiteCache implements Cacher using pkg/db.
type SQLiteCache struct {
	db *db.DB
}

// NewSQLiteCache creates a new cache.
func NewSQLiteCache(d *db.DB) *SQLiteCache {
	return &SQLiteCache{db: d}
}

// GetCache returns the stored value for key. Lookup errors count as misses.
func (c *SQLiteCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := c.db.QueryRowContext(ctx, "SELECT value FROM cache WHERE key = ?", key).Scan(&val)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("Cache lookup failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

// SetCache stores val under key, replacing any previous value.
func (c *SQLiteCache) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := c.db.ExecContext(ctx,
		"INSERT INTO cache (key, value, created_at) VALUES (?, ?, CURRENT_TIMESTAMP) "+
			"ON CONFLICT(key) DO UPDATE SET value = excluded.value, created_at = excluded.created_at",
		key, val)
	return err
}

// MemoryCache is an in-process Cacher for tools and tests that run without a database.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string][]byte)}
}

func (c *MemoryCache) GetCache(_ context.Context, key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *MemoryCache) SetCache(_ context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = append([]byte(nil), val...)
	return nil
}
