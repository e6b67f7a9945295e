package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iranverse/avatar-engine/internal/domain"
)

var (
	// ErrCacheMiss is returned when a key is not found in cache
	ErrCacheMiss = errors.New("cache miss")
	// ErrCacheExpired is returned when a cached value has expired
	ErrCacheExpired = errors.New("cache expired")
)

// defaultTTL applies when a state carries no expiry of its own.
const defaultTTL = 24 * time.Hour

// DB interface for database operations (compatible with pgxpool.Pool and pgxmock)
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// StateCache is a PostgreSQL-backed cache of resolved avatar states,
// keyed by the deterministic cache key derived from (rpm_id, version).
type StateCache struct {
	db DB
}

// NewStateCache creates a cache over a pgx pool.
func NewStateCache(db *pgxpool.Pool) *StateCache {
	return &StateCache{db: db}
}

// NewStateCacheWithDB creates a cache with a custom DB interface.
func NewStateCacheWithDB(db DB) *StateCache {
	return &StateCache{db: db}
}

// Get retrieves a cached avatar state by cache key.
func (c *StateCache) Get(ctx context.Context, key string) (*domain.AvatarState, error) {
	query := `
		SELECT value, expires_at
		FROM avatar_cache
		WHERE key = $1
	`

	var value []byte
	var expiresAt time.Time

	err := c.db.QueryRow(ctx, query, key).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}

	if time.Now().After(expiresAt) {
		_ = c.Delete(ctx, key)
		return nil, ErrCacheExpired
	}

	var state domain.AvatarState
	if err := json.Unmarshal(value, &state); err != nil {
		return nil, fmt.Errorf("decode cached state: %w", err)
	}
	return &state, nil
}

// Set stores an avatar state under its versioned cache key and moves
// the rpm_id's latest pointer to it. Entries expire with the state, or
// after the default TTL when the state has no expiry.
func (c *StateCache) Set(ctx context.Context, state *domain.AvatarState) error {
	if state == nil || state.CacheKey == "" {
		return fmt.Errorf("state has no cache key")
	}

	value, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	expiresAt := state.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(defaultTTL)
	}

	query := `
		INSERT INTO avatar_cache (key, value, expires_at)
		VALUES ($1, $3, $4), ($2, $3, $4)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    expires_at = EXCLUDED.expires_at,
		    created_at = NOW()
	`

	_, err = c.db.Exec(ctx, query,
		state.CacheKey, domain.LatestCacheKey(state.RPMID), value, expiresAt)
	return err
}

// Delete removes a key from cache.
func (c *StateCache) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM avatar_cache WHERE key = $1`
	_, err := c.db.Exec(ctx, query, key)
	return err
}

// InvalidateAvatar removes every cached version of an avatar. Called when
// a newer version supersedes the record.
func (c *StateCache) InvalidateAvatar(ctx context.Context, rpmID string) (int64, error) {
	query := `DELETE FROM avatar_cache WHERE key LIKE $1`
	result, err := c.db.Exec(ctx, query, "avatar:"+rpmID+":%")
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// CleanupExpired removes all expired entries.
func (c *StateCache) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM avatar_cache WHERE expires_at < NOW()`
	result, err := c.db.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
