package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Cache persists the last known identity and token in a local SQLite file so
// a restarted client can render a signed-in UI while the server is down. It
// is a fallback tier only; the server remains the source of truth.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (or creates) the cache database at path. Use ":memory:"
// in tests.
func OpenCache(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS session_cache (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Save stores the identity and token, replacing any previous entry.
func (c *Cache) Save(ctx context.Context, identity *Identity, token string) error {
	blob, err := json.Marshal(identity)
	if err != nil {
		return err
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	defer tx.Rollback()

	upsert := `INSERT INTO session_cache (key, value) VALUES (?, ?)
	           ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, upsert, "identity", string(blob)); err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	if _, err := tx.ExecContext(ctx, upsert, "token", token); err != nil {
		return fmt.Errorf("cache save: %w", err)
	}
	return tx.Commit()
}

// Load returns the cached identity and token, or (nil, "") when the cache is
// empty.
func (c *Cache) Load(ctx context.Context) (*Identity, string, error) {
	var blob string
	err := c.db.QueryRowContext(ctx,
		`SELECT value FROM session_cache WHERE key = 'identity'`).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("cache load: %w", err)
	}
	var identity Identity
	if err := json.Unmarshal([]byte(blob), &identity); err != nil {
		// A corrupt cache entry must not wedge the client; drop it.
		_ = c.Clear(ctx)
		return nil, "", nil
	}
	var token string
	err = c.db.QueryRowContext(ctx,
		`SELECT value FROM session_cache WHERE key = 'token'`).Scan(&token)
	if err != nil && err != sql.ErrNoRows {
		return nil, "", fmt.Errorf("cache load: %w", err)
	}
	return &identity, token, nil
}

// Clear wipes the cache.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM session_cache`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}
