package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// DB is the subset of pgxpool.Pool the sync package needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const defaultMaxAttempts = 5

// Queue enqueues backend sync jobs into Postgres. Delivery is handled
// by the Worker; callers never block on the upstream backend.
type Queue struct {
	db          DB
	maxAttempts int
}

func NewQueue(db DB) *Queue {
	return &Queue{db: db, maxAttempts: defaultMaxAttempts}
}

// Enqueue records a sync job for the given session. Failure to enqueue
// is reported to the caller but must not fail the session itself.
func (q *Queue) Enqueue(ctx context.Context, sessionID uuid.UUID, req *domain.UpdateAvatarRequest) error {
	if req == nil {
		return fmt.Errorf("enqueue sync job: nil request")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal sync payload: %w", err)
	}

	query := `
		INSERT INTO avatar_sync_queue (id, session_id, payload, attempts, max_attempts, status, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, 'pending', NOW(), NOW())`

	if _, err := q.db.Exec(ctx, query, uuid.New(), sessionID, payload, q.maxAttempts); err != nil {
		return fmt.Errorf("enqueue sync job: %w", err)
	}
	return nil
}

// PendingCount reports jobs still waiting for delivery, for health checks.
func (q *Queue) PendingCount(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM avatar_sync_queue WHERE status IN ('pending', 'retrying')`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending sync jobs: %w", err)
	}
	return count, nil
}
