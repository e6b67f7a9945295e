package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// PgxPool is the subset of pgxpool.Pool used by repositories,
// compatible with pgxmock.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// AvatarStateRepositoryInterface defines operations for avatar record access.
type AvatarStateRepositoryInterface interface {
	Upsert(ctx context.Context, state *domain.AvatarState) error
	GetByRPMID(ctx context.Context, rpmID string) (*domain.AvatarState, error)
	SetLatestURL(ctx context.Context, userID, url string) error
	GetLatestURL(ctx context.Context, userID string) (string, error)
}
