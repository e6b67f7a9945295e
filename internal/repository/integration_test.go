package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/iranverse/avatar-engine/internal/domain"
)

const integrationSchema = `
CREATE TABLE avatar_states (
	rpm_id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	status TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	state JSONB NOT NULL,
	expires_at TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE user_avatar_urls (
	user_id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// TestAvatarStateRepository_Integration exercises the version guard against
// a real Postgres. Skipped with -short.
func TestAvatarStateRepository_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "avatar",
				"POSTGRES_PASSWORD": "avatar",
				"POSTGRES_DB":       "avatar_test",
			},
			WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://avatar:avatar@%s:%s/avatar_test", host, port.Port())
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, integrationSchema)
	require.NoError(t, err)

	repo := NewAvatarStateRepository(pool)

	v1 := &domain.AvatarState{
		RPMID:    "it_abc",
		RPMURL:   "https://models.iranverse.io/it_abc.glb",
		Version:  1,
		Status:   domain.StatusComplete,
		CacheKey: domain.CacheKey("it_abc", 1),
	}
	require.NoError(t, repo.Upsert(ctx, v1))

	// A newer version replaces the record whole.
	v2 := *v1
	v2.Version = 2
	v2.CacheKey = domain.CacheKey("it_abc", 2)
	require.NoError(t, repo.Upsert(ctx, &v2))

	got, err := repo.GetByRPMID(ctx, "it_abc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	// Writing version 1 again must be rejected.
	err = repo.Upsert(ctx, v1)
	assert.ErrorIs(t, err, ErrStaleVersion)

	got, err = repo.GetByRPMID(ctx, "it_abc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}
