package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// ErrStaleVersion is returned when an upsert carries a version lower than
// the stored record. Versions only increase.
var ErrStaleVersion = errors.New("stale avatar version")

type AvatarStateRepository struct {
	pool PgxPool
}

func NewAvatarStateRepository(pool PgxPool) *AvatarStateRepository {
	return &AvatarStateRepository{pool: pool}
}

// Upsert stores an avatar record, replacing the previous version whole.
// The version guard rejects writes that would move the record backwards.
func (r *AvatarStateRepository) Upsert(ctx context.Context, state *domain.AvatarState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal avatar state: %w", err)
	}

	query := `
		INSERT INTO avatar_states (rpm_id, version, status, cache_key, state, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (rpm_id) DO UPDATE
		SET version = EXCLUDED.version,
		    status = EXCLUDED.status,
		    cache_key = EXCLUDED.cache_key,
		    state = EXCLUDED.state,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = NOW()
		WHERE avatar_states.version <= EXCLUDED.version
	`

	tag, err := r.pool.Exec(ctx, query,
		state.RPMID,
		state.Version,
		string(state.Status),
		state.CacheKey,
		payload,
		nullableTime(state.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("upsert avatar state: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrStaleVersion
	}
	return nil
}

// GetByRPMID returns the stored avatar record for an id.
func (r *AvatarStateRepository) GetByRPMID(ctx context.Context, rpmID string) (*domain.AvatarState, error) {
	query := `
		SELECT state
		FROM avatar_states
		WHERE rpm_id = $1
	`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, rpmID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAvatarNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get avatar state: %w", err)
	}

	var state domain.AvatarState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal avatar state: %w", err)
	}
	return &state, nil
}

// SetLatestURL records the latest resolved avatar URL for a user,
// consumed by the resume path on relaunch.
func (r *AvatarStateRepository) SetLatestURL(ctx context.Context, userID, url string) error {
	query := `
		INSERT INTO user_avatar_urls (user_id, url, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET url = EXCLUDED.url,
		    updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, userID, url); err != nil {
		return fmt.Errorf("set latest avatar url: %w", err)
	}
	return nil
}

// GetLatestURL returns the latest resolved avatar URL for a user.
func (r *AvatarStateRepository) GetLatestURL(ctx context.Context, userID string) (string, error) {
	query := `
		SELECT url
		FROM user_avatar_urls
		WHERE user_id = $1
	`

	var url string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get latest avatar url: %w", err)
	}
	return url, nil
}
