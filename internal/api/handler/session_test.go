package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iranverse/avatar-engine/internal/api/middleware"
	"github.com/iranverse/avatar-engine/internal/avatar"
	"github.com/iranverse/avatar-engine/internal/channel"
	"github.com/iranverse/avatar-engine/internal/domain"
	"github.com/iranverse/avatar-engine/internal/session"
)

// testLogger returns a logger that discards all output
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStore struct{}

func (stubStore) Upsert(context.Context, *domain.AvatarState) error { return nil }
func (stubStore) GetByRPMID(context.Context, string) (*domain.AvatarState, error) {
	return nil, domain.ErrAvatarNotFound
}
func (stubStore) SetLatestURL(context.Context, string, string) error { return nil }

func newSessionApp(t *testing.T) (*fiber.App, *session.Manager) {
	t.Helper()

	manager := session.NewManager(session.Deps{
		Adapter: channel.NewAdapter([]string{"readyplayer.me"}),
		Parser:  avatar.NewParser([]string{"ARKit"}),
		Store:   stubStore{},
		Fallback: avatar.NewFallbackProvider(avatar.FallbackConfig{
			MaleURL:      "https://assets.iranverse.io/fallback/male.glb",
			FemaleURL:    "https://assets.iranverse.io/fallback/female.glb",
			NonBinaryURL: "https://assets.iranverse.io/fallback/nonbinary.glb",
		}),
		Logger:  testLogger(),
		Timeout: time.Minute,
	})
	t.Cleanup(manager.Shutdown)

	h := NewSessionHandler(manager, testLogger())

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(testLogger()),
	})
	app.Post("/v1/sessions", h.Create)
	app.Get("/v1/sessions/:id", h.Get)
	app.Post("/v1/sessions/:id/messages", h.Message)
	app.Post("/v1/sessions/:id/retry", h.Retry)
	app.Post("/v1/sessions/:id/skip", h.Skip)
	app.Delete("/v1/sessions/:id", h.Delete)

	return app, manager
}

func createSession(t *testing.T, app *fiber.App) domain.SessionSnapshot {
	t.Helper()

	body := bytes.NewBufferString(`{"user_id":"user-1","gender":"female"}`)
	req := httptest.NewRequest("POST", "/v1/sessions", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var snap domain.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func TestCreateSession(t *testing.T) {
	app, _ := newSessionApp(t)

	snap := createSession(t, app)

	assert.NotEqual(t, uuid.Nil, snap.ID)
	assert.Equal(t, "user-1", snap.UserID)
	assert.Equal(t, domain.SessionLoading, snap.State)
	assert.Equal(t, domain.GenderFemale, snap.Gender)
}

func TestCreateSessionValidation(t *testing.T) {
	app, _ := newSessionApp(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: `{}`},
		{name: "blank user", body: `{"user_id":"   "}`},
		{name: "invalid json", body: `{user`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/sessions", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetSession(t *testing.T) {
	app, _ := newSessionApp(t)
	snap := createSession(t, app)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/"+snap.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got domain.SessionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, snap.ID, got.ID)
}

func TestGetSessionNotFound(t *testing.T) {
	app, _ := newSessionApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/"+uuid.NewString(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGetSessionBadID(t *testing.T) {
	app, _ := newSessionApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/sessions/not-a-uuid", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestRelayMessageDrivesSession(t *testing.T) {
	app, manager := newSessionApp(t)
	snap := createSession(t, app)

	body := bytes.NewBufferString(`{"type":"iframe_loaded"}`)
	req := httptest.NewRequest("POST", "/v1/sessions/"+snap.ID.String()+"/messages", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	ctrl, ok := manager.Get(snap.ID)
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return ctrl.Snapshot().State == domain.SessionReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRelayMessageUnknownSession(t *testing.T) {
	app, _ := newSessionApp(t)

	body := bytes.NewBufferString(`{"type":"iframe_loaded"}`)
	req := httptest.NewRequest("POST", "/v1/sessions/"+uuid.NewString()+"/messages", body)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestSkipSession(t *testing.T) {
	app, manager := newSessionApp(t)
	snap := createSession(t, app)

	// Reach Ready first; skip is not honored while still Loading.
	body := bytes.NewBufferString(`{"type":"page_loaded"}`)
	req := httptest.NewRequest("POST", "/v1/sessions/"+snap.ID.String()+"/messages", body)
	req.Header.Set("Content-Type", "application/json")
	_, err := app.Test(req)
	require.NoError(t, err)

	ctrl, ok := manager.Get(snap.ID)
	require.True(t, ok)
	require.Eventually(t, func() bool {
		return ctrl.Snapshot().State == domain.SessionReady
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/sessions/"+snap.ID.String()+"/skip", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	assert.Eventually(t, func() bool {
		s := ctrl.Snapshot()
		return s.State == domain.SessionComplete && s.Avatar != nil && s.Avatar.IsFallback
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDeleteSession(t *testing.T) {
	app, manager := newSessionApp(t)
	snap := createSession(t, app)

	resp, err := app.Test(httptest.NewRequest("DELETE", "/v1/sessions/"+snap.ID.String(), nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	_, ok := manager.Get(snap.ID)
	assert.False(t, ok)
}

func TestRetryUnknownSession(t *testing.T) {
	app, _ := newSessionApp(t)

	resp, err := app.Test(httptest.NewRequest("POST", "/v1/sessions/"+uuid.NewString()+"/retry", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
