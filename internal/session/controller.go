package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iranverse/avatar-engine/internal/avatar"
	"github.com/iranverse/avatar-engine/internal/channel"
	"github.com/iranverse/avatar-engine/internal/domain"
)

// StateStore persists completed avatar states.
type StateStore interface {
	Upsert(ctx context.Context, state *domain.AvatarState) error
	GetByRPMID(ctx context.Context, rpmID string) (*domain.AvatarState, error)
	SetLatestURL(ctx context.Context, userID, url string) error
}

// StateCache caches resolved states. Best effort only.
type StateCache interface {
	Set(ctx context.Context, state *domain.AvatarState) error
}

// SyncEnqueuer hands a completed avatar to the backend sync queue.
type SyncEnqueuer interface {
	Enqueue(ctx context.Context, sessionID uuid.UUID, req *domain.UpdateAvatarRequest) error
}

// Sink delivers outbound payloads (commands for the creation surface,
// session notifications) to whatever transport the session is attached to.
type Sink interface {
	Send(sessionID uuid.UUID, payload []byte)
}

// Deps bundles the collaborators a controller needs.
type Deps struct {
	Adapter  *channel.Adapter
	Parser   *avatar.Parser
	Store    StateStore
	Cache    StateCache
	Queue    SyncEnqueuer
	Fallback *avatar.FallbackProvider
	Sink     Sink
	Logger   *slog.Logger
	Timeout  time.Duration
}

type eventKind int

const (
	eventRaw eventKind = iota
	eventTimer
	eventRetry
	eventSkip
	eventCancel
	eventSnapshot
)

// event is the single serialization unit: channel messages, timer
// firings and user actions all arrive through the same queue, so no
// two transitions ever run concurrently.
type event struct {
	kind  eventKind
	raw   []byte
	gen   int
	reply chan domain.SessionSnapshot
}

// Controller drives one creation session. All state is owned by the
// run loop goroutine; outside callers interact only through Submit
// and the Manager.
type Controller struct {
	id     uuid.UUID
	userID string
	gender domain.Gender
	deps   Deps

	events chan event
	done   chan struct{}

	// Everything below is touched only from the run loop.
	state      domain.SessionState
	processing bool
	timer      *time.Timer
	timerGen   int
	avatar     *domain.AvatarState
	lastError  *domain.AvatarError
	attempts   int
	createdAt  time.Time
	updatedAt  time.Time
}

func newController(userID string, gender domain.Gender, deps Deps) *Controller {
	now := time.Now().UTC()
	return &Controller{
		id:        uuid.New(),
		userID:    userID,
		gender:    gender,
		deps:      deps,
		events:    make(chan event, 32),
		done:      make(chan struct{}),
		state:     domain.SessionIdle,
		createdAt: now,
		updatedAt: now,
	}
}

func (c *Controller) ID() uuid.UUID { return c.id }

// Submit queues an inbound raw channel message. Messages for a
// cancelled session are dropped, not queued.
func (c *Controller) Submit(raw []byte) {
	c.dispatch(event{kind: eventRaw, raw: raw})
}

func (c *Controller) Retry() {
	c.dispatch(event{kind: eventRetry})
}

func (c *Controller) Skip() {
	c.dispatch(event{kind: eventSkip})
}

func (c *Controller) Cancel() {
	c.dispatch(event{kind: eventCancel})
}

// Snapshot returns a point-in-time copy of the session. Safe from any
// goroutine.
func (c *Controller) Snapshot() domain.SessionSnapshot {
	reply := make(chan domain.SessionSnapshot, 1)
	select {
	case c.events <- event{kind: eventSnapshot, reply: reply}:
		select {
		case snap := <-reply:
			return snap
		case <-c.done:
		}
	case <-c.done:
	}
	return c.snapshot()
}

func (c *Controller) dispatch(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	default:
		c.deps.Logger.Warn("session event queue full, dropping event", "session_id", c.id)
	}
}

// run is the session's event loop. It begins the session immediately.
func (c *Controller) run(ctx context.Context) {
	c.begin()

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return
		case ev := <-c.events:
			if ev.kind == eventCancel {
				c.teardown()
				return
			}
			c.handle(ctx, ev)
		}
	}
}

// begin performs Idle -> Loading: arms the load timeout and tells the
// creation surface what to send us.
func (c *Controller) begin() {
	c.transition(domain.SessionLoading)
	c.armTimer()
	c.sendCommand(channel.SubscribeCommand())
	c.sendCommand(channel.ConfigureCommand(map[string]any{
		"gender": string(c.gender),
	}))
}

// handle applies one event to the state machine. It runs on the loop
// goroutine only; tests drive it directly for determinism.
func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case eventSnapshot:
		ev.reply <- c.snapshot()
	case eventRaw:
		c.handleRaw(ctx, ev.raw)
	case eventTimer:
		c.handleTimer(ev.gen)
	case eventRetry:
		c.handleRetry()
	case eventSkip:
		c.handleSkip(ctx)
	}
}

func (c *Controller) handleRaw(ctx context.Context, raw []byte) {
	env, err := c.deps.Adapter.Receive(raw)
	if err != nil {
		// Untrusted surface: unparseable input is dropped, not fatal.
		c.deps.Logger.Debug("ignoring malformed channel message", "session_id", c.id, "error", err)
		return
	}

	switch env.Type {
	case channel.TypeIframeLoaded, channel.TypePageLoaded:
		c.handleLoaded()
	case channel.TypeAvatar:
		c.handleAvatar(ctx, env)
	case channel.TypeError:
		c.handleProviderError(env)
	case channel.TypeClose:
		c.notify("session.close_requested", nil)
	case channel.TypeUserAuthorized, channel.TypeUserUpdated:
		c.deps.Logger.Debug("surface user event", "session_id", c.id, "type", env.Type)
	case channel.TypeUnknown:
		c.deps.Logger.Debug("ignoring unknown message type", "session_id", c.id)
	}
}

func (c *Controller) handleLoaded() {
	if c.state != domain.SessionLoading {
		return
	}
	c.disarmTimer()
	c.transition(domain.SessionReady)
	c.notify("session.ready", nil)
}

func (c *Controller) handleAvatar(ctx context.Context, env *channel.Envelope) {
	// Single-flight: a second avatar envelope while one is in flight
	// is ignored, never queued.
	if c.processing {
		c.deps.Logger.Info("duplicate avatar envelope ignored", "session_id", c.id)
		return
	}
	switch c.state {
	case domain.SessionLoading, domain.SessionReady:
	default:
		c.deps.Logger.Info("avatar envelope ignored in state", "session_id", c.id, "state", c.state)
		return
	}

	c.processing = true
	defer func() { c.processing = false }()

	c.disarmTimer()
	c.transition(domain.SessionCreating)
	c.transition(domain.SessionProcessing)

	req, err := c.deps.Parser.Parse(env)
	if err != nil {
		c.fail("malformed_payload", "avatar payload could not be parsed", err, true)
		return
	}

	if result := avatar.ValidateRequest(req); !result.IsValid {
		c.fail("validation_failure", fmt.Sprintf("avatar failed validation: %v", result.Errors), nil, true)
		return
	}

	version, err := c.nextVersion(ctx, req.RPMID)
	if err != nil {
		c.fail("local_persistence_failure", "could not determine avatar version", err, true)
		return
	}

	state := avatar.StateFromRequest(req, version)

	if err := c.deps.Store.Upsert(ctx, state); err != nil {
		c.fail("local_persistence_failure", "avatar could not be saved", err, true)
		return
	}

	c.persistResumeURL(ctx, state)
	c.cacheState(ctx, state)

	// Fire-and-forget: Complete never waits on the backend, and a
	// sync failure only produces a notification later.
	if c.deps.Queue != nil {
		if err := c.deps.Queue.Enqueue(ctx, c.id, req); err != nil {
			c.deps.Logger.Warn("failed to enqueue backend sync", "session_id", c.id, "error", err)
			c.notify("avatar.sync_deferred", map[string]any{"reason": err.Error()})
		}
	}

	c.avatar = state
	c.lastError = nil
	c.transition(domain.SessionComplete)
	c.notify("session.complete", map[string]any{"avatar": state})
}

func (c *Controller) handleProviderError(env *channel.Envelope) {
	// The surface can still emit errors after the session settled; a
	// completed or timed-out session never regresses because of one.
	switch c.state {
	case domain.SessionLoading, domain.SessionReady, domain.SessionCreating, domain.SessionProcessing:
	default:
		c.deps.Logger.Debug("provider error ignored in state", "session_id", c.id, "state", c.state)
		return
	}

	avErr := &domain.AvatarError{
		Type:      "provider_reported",
		Code:      "provider_error",
		Message:   env.Message,
		Timestamp: time.Now().UTC(),
		Retryable: true,
	}
	if env.Data != nil {
		if code, ok := env.Data["code"].(string); ok && code != "" {
			avErr.Code = code
		}
		if msg, ok := env.Data["message"].(string); ok && msg != "" {
			avErr.Message = msg
		}
	}
	c.disarmTimer()
	c.processing = false
	c.lastError = avErr
	c.transition(domain.SessionError)
	c.notify("session.error", map[string]any{"error": avErr})
}

func (c *Controller) handleTimer(gen int) {
	// A fire from a timer armed for a state we already left.
	if gen != c.timerGen {
		return
	}
	if c.state != domain.SessionLoading {
		return
	}
	c.lastError = &domain.AvatarError{
		Type:      "session_timeout",
		Code:      "timeout",
		Message:   "creation surface did not load in time",
		Timestamp: time.Now().UTC(),
		Retryable: true,
	}
	c.transition(domain.SessionTimedOut)
	c.notify("session.timed_out", map[string]any{"error": c.lastError})
}

// handleRetry re-arms Loading from a recoverable failure state.
func (c *Controller) handleRetry() {
	switch c.state {
	case domain.SessionError, domain.SessionTimedOut:
	default:
		return
	}
	c.attempts++
	c.lastError = nil
	c.processing = false
	c.transition(domain.SessionLoading)
	c.armTimer()
	c.sendCommand(channel.SubscribeCommand())
	c.notify("session.retrying", map[string]any{"attempt": c.attempts})
}

// handleSkip bypasses the creation surface entirely and completes with
// the deterministic fallback avatar.
func (c *Controller) handleSkip(ctx context.Context) {
	switch c.state {
	case domain.SessionReady, domain.SessionError, domain.SessionTimedOut:
	default:
		return
	}
	c.disarmTimer()
	c.processing = false
	c.transition(domain.SessionSkipped)

	state := c.deps.Fallback.DefaultFor(c.gender)
	c.persistResumeURL(ctx, state)
	c.cacheState(ctx, state)

	c.avatar = state
	c.lastError = nil
	c.transition(domain.SessionComplete)
	c.notify("session.complete", map[string]any{"avatar": state, "fallback": true})
}

func (c *Controller) nextVersion(ctx context.Context, rpmID string) (int, error) {
	existing, err := c.deps.Store.GetByRPMID(ctx, rpmID)
	if err != nil {
		if errors.Is(err, domain.ErrAvatarNotFound) {
			return 1, nil
		}
		return 0, err
	}
	return existing.Version + 1, nil
}

func (c *Controller) persistResumeURL(ctx context.Context, state *domain.AvatarState) {
	url := avatar.Resolve(state, avatar.ContextDisplay)
	if url == "" {
		return
	}
	if err := c.deps.Store.SetLatestURL(ctx, c.userID, avatar.VersionedURL(url, state.Version)); err != nil {
		c.deps.Logger.Warn("failed to persist resume url", "session_id", c.id, "error", err)
	}
}

func (c *Controller) cacheState(ctx context.Context, state *domain.AvatarState) {
	if c.deps.Cache == nil {
		return
	}
	if err := c.deps.Cache.Set(ctx, state); err != nil {
		c.deps.Logger.Warn("failed to cache avatar state", "session_id", c.id, "error", err)
	}
}

func (c *Controller) fail(kind, message string, cause error, retryable bool) {
	avErr := &domain.AvatarError{
		Type:            kind,
		Code:            kind,
		Message:         message,
		Timestamp:       time.Now().UTC(),
		Retryable:       retryable,
		SuggestedAction: "retry",
	}
	if cause != nil {
		c.deps.Logger.Error("session failed", "session_id", c.id, "kind", kind, "error", cause)
	} else {
		c.deps.Logger.Error("session failed", "session_id", c.id, "kind", kind, "message", message)
	}
	c.lastError = avErr
	c.transition(domain.SessionError)
	c.notify("session.error", map[string]any{"error": avErr})
}

func (c *Controller) transition(next domain.SessionState) {
	prev := c.state
	c.state = next
	c.updatedAt = time.Now().UTC()
	c.deps.Logger.Info("session transition",
		"session_id", c.id,
		"from", prev,
		"to", next,
	)
}

// armTimer starts the load-timeout. Each arming bumps the generation,
// so a fire from a previous arming is recognizably stale.
func (c *Controller) armTimer() {
	c.timerGen++
	gen := c.timerGen
	if c.deps.Timeout <= 0 {
		return
	}
	c.timer = time.AfterFunc(c.deps.Timeout, func() {
		select {
		case c.events <- event{kind: eventTimer, gen: gen}:
		case <-c.done:
		}
	})
}

func (c *Controller) disarmTimer() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) teardown() {
	c.disarmTimer()
	c.processing = false
	close(c.done)
}

func (c *Controller) snapshot() domain.SessionSnapshot {
	return domain.SessionSnapshot{
		ID:        c.id,
		UserID:    c.userID,
		State:     c.state,
		Gender:    c.gender,
		Avatar:    c.avatar,
		LastError: c.lastError,
		Attempts:  c.attempts,
		CreatedAt: c.createdAt,
		UpdatedAt: c.updatedAt,
	}
}

func (c *Controller) sendCommand(cmd channel.Command) {
	if c.deps.Sink == nil {
		return
	}
	payload, err := channel.EncodeCommand(cmd)
	if err != nil {
		c.deps.Logger.Error("failed to encode surface command", "session_id", c.id, "error", err)
		return
	}
	c.deps.Sink.Send(c.id, payload)
}

func (c *Controller) notify(kind string, data map[string]any) {
	if c.deps.Sink == nil {
		return
	}
	msg := map[string]any{
		"type":      kind,
		"sessionId": c.id.String(),
		"state":     c.state,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range data {
		msg[k] = v
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		c.deps.Logger.Error("failed to encode notification", "session_id", c.id, "error", err)
		return
	}
	c.deps.Sink.Send(c.id, payload)
}
