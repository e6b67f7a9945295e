package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iranverse/avatar-engine/internal/avatar"
	"github.com/iranverse/avatar-engine/internal/channel"
	"github.com/iranverse/avatar-engine/internal/domain"
)

type fakeStore struct {
	states     map[string]*domain.AvatarState
	latestURLs map[string]string
	upserts    int
	upsertErr  error
	lookupErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		states:     make(map[string]*domain.AvatarState),
		latestURLs: make(map[string]string),
	}
}

func (s *fakeStore) Upsert(_ context.Context, state *domain.AvatarState) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	s.states[state.RPMID] = state
	return nil
}

func (s *fakeStore) GetByRPMID(_ context.Context, rpmID string) (*domain.AvatarState, error) {
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	state, ok := s.states[rpmID]
	if !ok {
		return nil, domain.ErrAvatarNotFound
	}
	return state, nil
}

func (s *fakeStore) SetLatestURL(_ context.Context, userID, url string) error {
	s.latestURLs[userID] = url
	return nil
}

type fakeCache struct {
	sets   []*domain.AvatarState
	setErr error
}

func (c *fakeCache) Set(_ context.Context, state *domain.AvatarState) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.sets = append(c.sets, state)
	return nil
}

type fakeQueue struct {
	enqueued   []*domain.UpdateAvatarRequest
	enqueueErr error
}

func (q *fakeQueue) Enqueue(_ context.Context, _ uuid.UUID, req *domain.UpdateAvatarRequest) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, req)
	return nil
}

type fakeSink struct {
	payloads []string
}

func (s *fakeSink) Send(_ uuid.UUID, payload []byte) {
	s.payloads = append(s.payloads, string(payload))
}

func (s *fakeSink) contains(substr string) bool {
	for _, p := range s.payloads {
		if strings.Contains(p, substr) {
			return true
		}
	}
	return false
}

type harness struct {
	ctrl  *Controller
	store *fakeStore
	cache *fakeCache
	queue *fakeQueue
	sink  *fakeSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newFakeStore()
	cache := &fakeCache{}
	queue := &fakeQueue{}
	sink := &fakeSink{}

	deps := Deps{
		Adapter: channel.NewAdapter([]string{"readyplayer.me", "iranverse.io"}),
		Parser:  avatar.NewParser([]string{"ARKit", "Oculus Visemes"}),
		Store:   store,
		Cache:   cache,
		Queue:   queue,
		Fallback: avatar.NewFallbackProvider(avatar.FallbackConfig{
			MaleURL:      "https://assets.iranverse.io/fallback/male.glb",
			FemaleURL:    "https://assets.iranverse.io/fallback/female.glb",
			NonBinaryURL: "https://assets.iranverse.io/fallback/nonbinary.glb",
		}),
		Sink:   sink,
		Logger: slog.New(slog.NewTextHandler(discard{}, nil)),
		// Timeout zero keeps real timers out; tests fire timer events
		// by hand.
		Timeout: 0,
	}

	return &harness{
		ctrl:  newController("user-1", domain.GenderFemale, deps),
		store: store,
		cache: cache,
		queue: queue,
		sink:  sink,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func (h *harness) raw(payload string) {
	h.ctrl.handle(context.Background(), event{kind: eventRaw, raw: []byte(payload)})
}

func (h *harness) fireTimer(gen int) {
	h.ctrl.handle(context.Background(), event{kind: eventTimer, gen: gen})
}

const avatarPayload = `{"type":"avatar","data":{"url":"https://models.readyplayer.me/abc123.glb","gender":"female"}}`

func TestBeginEntersLoading(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()

	assert.Equal(t, domain.SessionLoading, h.ctrl.state)
	// Subscribe and configure commands go out immediately.
	require.Len(t, h.sink.payloads, 2)
	assert.Contains(t, h.sink.payloads[0], "subscribe")
	assert.Contains(t, h.sink.payloads[1], "avatar-creator")
}

func TestLoadedTransitionsToReady(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()

	h.raw(`{"type":"iframe_loaded"}`)

	assert.Equal(t, domain.SessionReady, h.ctrl.state)
	assert.True(t, h.sink.contains("session.ready"))
}

func TestAvatarEnvelopeCompletesSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"page_loaded"}`)

	h.raw(avatarPayload)

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	require.NotNil(t, h.ctrl.avatar)
	assert.Equal(t, "abc123", h.ctrl.avatar.RPMID)
	assert.Equal(t, 1, h.ctrl.avatar.Version)
	assert.Equal(t, domain.StatusComplete, h.ctrl.avatar.Status)

	assert.Equal(t, 1, h.store.upserts)
	assert.Contains(t, h.store.latestURLs["user-1"], "v=1")
	require.Len(t, h.cache.sets, 1)
	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, "abc123", h.queue.enqueued[0].RPMID)
	assert.True(t, h.sink.contains("session.complete"))
}

func TestDuplicateAvatarEnvelopeProcessedOnce(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw(avatarPayload)
	h.raw(avatarPayload)

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.Equal(t, 1, h.store.upserts)
	require.Len(t, h.queue.enqueued, 1)
}

func TestAvatarEnvelopeIgnoredWhileInFlight(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)
	h.ctrl.processing = true

	h.raw(avatarPayload)

	assert.Zero(t, h.store.upserts)
	assert.Equal(t, domain.SessionReady, h.ctrl.state)
}

func TestTimeoutTransitionsToTimedOutNeverReady(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()

	h.fireTimer(h.ctrl.timerGen)

	assert.Equal(t, domain.SessionTimedOut, h.ctrl.state)
	require.NotNil(t, h.ctrl.lastError)
	assert.Equal(t, "session_timeout", h.ctrl.lastError.Type)

	// A late loaded envelope must not resurrect the session.
	h.raw(`{"type":"iframe_loaded"}`)
	assert.Equal(t, domain.SessionTimedOut, h.ctrl.state)
}

func TestStaleTimerFireIgnored(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	staleGen := h.ctrl.timerGen

	h.raw(`{"type":"iframe_loaded"}`)
	require.Equal(t, domain.SessionReady, h.ctrl.state)

	h.fireTimer(staleGen)

	assert.Equal(t, domain.SessionReady, h.ctrl.state)
}

func TestRetryRearmsLoading(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"error","data":{"code":"export_failed","message":"export failed"}}`)
	require.Equal(t, domain.SessionError, h.ctrl.state)

	h.ctrl.handle(context.Background(), event{kind: eventRetry})

	assert.Equal(t, domain.SessionLoading, h.ctrl.state)
	assert.Equal(t, 1, h.ctrl.attempts)
	assert.Nil(t, h.ctrl.lastError)
	assert.True(t, h.sink.contains("session.retrying"))
}

func TestRetryIgnoredOutsideFailureStates(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.ctrl.handle(context.Background(), event{kind: eventRetry})

	assert.Equal(t, domain.SessionReady, h.ctrl.state)
	assert.Zero(t, h.ctrl.attempts)
}

func TestSkipCompletesWithFallback(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.ctrl.handle(context.Background(), event{kind: eventSkip})

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	require.NotNil(t, h.ctrl.avatar)
	assert.True(t, h.ctrl.avatar.IsFallback)
	assert.Equal(t, "fallback_female", h.ctrl.avatar.RPMID)
	// The embedded surface is never involved in a skip.
	assert.Empty(t, h.queue.enqueued)
	assert.True(t, h.sink.contains("session.complete"))
}

func TestSkipFromTimedOut(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.fireTimer(h.ctrl.timerGen)
	require.Equal(t, domain.SessionTimedOut, h.ctrl.state)

	h.ctrl.handle(context.Background(), event{kind: eventSkip})

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.True(t, h.ctrl.avatar.IsFallback)
}

func TestProviderErrorSurfaced(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()

	h.raw(`{"type":"error","message":"render crashed","data":{"code":"render_error"}}`)

	assert.Equal(t, domain.SessionError, h.ctrl.state)
	require.NotNil(t, h.ctrl.lastError)
	assert.Equal(t, "provider_reported", h.ctrl.lastError.Type)
	assert.Equal(t, "render_error", h.ctrl.lastError.Code)
	assert.True(t, h.ctrl.lastError.Retryable)
}

func TestLateProviderErrorDoesNotRegressCompletedSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)
	h.raw(avatarPayload)
	require.Equal(t, domain.SessionComplete, h.ctrl.state)

	h.raw(`{"type":"error","message":"late"}`)

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.Nil(t, h.ctrl.lastError)
	assert.NotNil(t, h.ctrl.avatar)
}

func TestProviderErrorIgnoredAfterTimeout(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.fireTimer(h.ctrl.timerGen)
	require.Equal(t, domain.SessionTimedOut, h.ctrl.state)

	h.raw(`{"type":"error","message":"late"}`)

	assert.Equal(t, domain.SessionTimedOut, h.ctrl.state)
	assert.Equal(t, "session_timeout", h.ctrl.lastError.Type)
}

func TestGarbageInputIgnored(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	for _, garbage := range []string{"", "not json at all", `{"type":42}`, `[1,2,3]`} {
		h.raw(garbage)
	}

	assert.Equal(t, domain.SessionReady, h.ctrl.state)
	assert.Zero(t, h.store.upserts)
}

func TestBareModelURLAccepted(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw("https://x.iranverse.io/m.glb")

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.Equal(t, "m", h.ctrl.avatar.RPMID)
}

func TestPersistenceFailureIsFatal(t *testing.T) {
	h := newHarness(t)
	h.store.upsertErr = errors.New("disk full")
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw(avatarPayload)

	assert.Equal(t, domain.SessionError, h.ctrl.state)
	require.NotNil(t, h.ctrl.lastError)
	assert.Equal(t, "local_persistence_failure", h.ctrl.lastError.Type)
	assert.True(t, h.ctrl.lastError.Retryable)
	assert.Empty(t, h.queue.enqueued)
}

func TestCacheAndSyncFailuresNonFatal(t *testing.T) {
	h := newHarness(t)
	h.cache.setErr = errors.New("cache down")
	h.queue.enqueueErr = errors.New("queue down")
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw(avatarPayload)

	assert.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.Equal(t, 1, h.store.upserts)
	assert.True(t, h.sink.contains("avatar.sync_deferred"))
}

func TestVersionIncrementsOnReplacement(t *testing.T) {
	h := newHarness(t)
	h.store.states["abc123"] = &domain.AvatarState{RPMID: "abc123", Version: 4}
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw(avatarPayload)

	require.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.Equal(t, 5, h.ctrl.avatar.Version)
	assert.Equal(t, domain.CacheKey("abc123", 5), h.ctrl.avatar.CacheKey)
}

func TestCloseRequestsConfirmationOnly(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw(`{"type":"close"}`)

	assert.Equal(t, domain.SessionReady, h.ctrl.state)
	assert.True(t, h.sink.contains("session.close_requested"))
}

func TestSnapshotReflectsState(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	snap := h.ctrl.snapshot()

	assert.Equal(t, h.ctrl.id, snap.ID)
	assert.Equal(t, "user-1", snap.UserID)
	assert.Equal(t, domain.SessionReady, snap.State)
	assert.Equal(t, domain.GenderFemale, snap.Gender)
}

func TestMorphParamsAppendedToPersistedURL(t *testing.T) {
	h := newHarness(t)
	h.ctrl.begin()
	h.raw(`{"type":"iframe_loaded"}`)

	h.raw(avatarPayload)

	require.Equal(t, domain.SessionComplete, h.ctrl.state)
	assert.Equal(t, 1, strings.Count(h.ctrl.avatar.RPMURL, "morphTargets="))
	assert.Contains(t, h.ctrl.avatar.RPMURL, "morphTargets=")
}

func TestFailureStatesOfferRecovery(t *testing.T) {
	tests := []struct {
		name    string
		trigger func(h *harness)
	}{
		{
			name: "provider error",
			trigger: func(h *harness) {
				h.raw(`{"type":"error","message":"boom"}`)
			},
		},
		{
			name: "timeout",
			trigger: func(h *harness) {
				h.fireTimer(h.ctrl.timerGen)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.ctrl.begin()
			tt.trigger(h)

			require.NotNil(t, h.ctrl.lastError)
			assert.True(t, h.ctrl.lastError.Retryable)

			h.ctrl.handle(context.Background(), event{kind: eventRetry})
			assert.Equal(t, domain.SessionLoading, h.ctrl.state,
				fmt.Sprintf("retry must recover from %s", tt.name))
		})
	}
}
