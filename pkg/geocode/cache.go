package geocode

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/acceslibre/erpsync/internal/db"
)

// Cache stores successful geocoding results.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, bool, error)
	Put(ctx context.Context, key string, r *Result) error
}

// CacheKey returns the SHA-256 hex digest of the normalized query.
func CacheKey(addr AddressInput) string {
	normalized := strings.Join([]string{
		strings.Join(strings.Fields(strings.ToLower(addr.Query)), " "),
		strings.TrimSpace(addr.PostCode),
		strings.TrimSpace(addr.CityCode),
	}, "|")
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// PGCache keeps results in a PostgreSQL table (address_hash, result jsonb,
// cached_at).
type PGCache struct {
	pool  db.Pool
	table string
}

// NewPGCache creates a cache over table, default "geocode_cache".
func NewPGCache(pool db.Pool, table string) *PGCache {
	if table == "" {
		table = "geocode_cache"
	}
	return &PGCache{pool: pool, table: table}
}

// Get implements Cache.
func (c *PGCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	var payload []byte
	err := c.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT result FROM %s WHERE address_hash = $1", c.table), key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: read cache")
	}
	return decodeCached(payload)
}

// Put implements Cache.
func (c *PGCache) Put(ctx context.Context, key string, r *Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "geocode: encode cache entry")
	}
	_, err = c.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (address_hash, result, cached_at)
		VALUES ($1, $2, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			result = EXCLUDED.result,
			cached_at = now()`, c.table),
		key, payload,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}

// SQLiteCache keeps results in a local SQLite file, for runs without a
// writable directory database.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLiteCache opens (and creates) the cache database at dsn.
func NewSQLiteCache(ctx context.Context, dsn string) (*SQLiteCache, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: open sqlite cache")
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		`CREATE TABLE IF NOT EXISTS geocode_cache (
			address_hash TEXT PRIMARY KEY,
			result       TEXT NOT NULL,
			cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
		)`,
	} {
		if _, err := sdb.ExecContext(ctx, stmt); err != nil {
			_ = sdb.Close()
			return nil, eris.Wrap(err, "geocode: init sqlite cache")
		}
	}
	return &SQLiteCache{db: sdb}, nil
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key string) (*Result, bool, error) {
	var payload string
	err := c.db.QueryRowContext(ctx, "SELECT result FROM geocode_cache WHERE address_hash = ?", key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "geocode: read sqlite cache")
	}
	return decodeCached([]byte(payload))
}

// Put implements Cache.
func (c *SQLiteCache) Put(ctx context.Context, key string, r *Result) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return eris.Wrap(err, "geocode: encode cache entry")
	}
	_, err = c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (address_hash, result, cached_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT (address_hash) DO UPDATE SET result = excluded.result, cached_at = excluded.cached_at`,
		key, string(payload),
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store sqlite cache")
	}
	return nil
}

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

func decodeCached(payload []byte) (*Result, bool, error) {
	var r Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, false, eris.Wrap(err, "geocode: decode cache entry")
	}
	return &r, true, nil
}
