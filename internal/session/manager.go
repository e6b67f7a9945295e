package session

import (
	"context"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// Manager owns the live session registry. One controller (and one
// goroutine) per session.
type Manager struct {
	deps Deps

	mu       stdsync.RWMutex
	sessions map[uuid.UUID]*Controller
	cancels  map[uuid.UUID]context.CancelFunc
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[uuid.UUID]*Controller),
		cancels:  make(map[uuid.UUID]context.CancelFunc),
	}
}

// SetSink attaches the outbound transport. The hub and the manager
// reference each other, so one side has to be wired after construction.
// Must be called before the first Start.
func (m *Manager) SetSink(sink Sink) {
	m.deps.Sink = sink
}

// Start creates a session and begins driving it.
func (m *Manager) Start(ctx context.Context, userID string, gender domain.Gender) *Controller {
	ctrl := newController(userID, gender, m.deps)

	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.sessions[ctrl.ID()] = ctrl
	m.cancels[ctrl.ID()] = cancel
	m.mu.Unlock()

	go ctrl.run(runCtx)

	m.deps.Logger.Info("session started", "session_id", ctrl.ID(), "user_id", userID)
	return ctrl
}

func (m *Manager) Get(id uuid.UUID) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ctrl, ok := m.sessions[id]
	return ctrl, ok
}

// HandleRaw relays one raw channel message to its session. Unknown
// session IDs are reported so the transport can close the connection.
func (m *Manager) HandleRaw(id uuid.UUID, raw []byte) error {
	ctrl, ok := m.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	ctrl.Submit(raw)
	return nil
}

func (m *Manager) Retry(id uuid.UUID) error {
	ctrl, ok := m.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	ctrl.Retry()
	return nil
}

func (m *Manager) Skip(id uuid.UUID) error {
	ctrl, ok := m.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	ctrl.Skip()
	return nil
}

// Cancel tears a session down: its timer stops, its single-flight
// flag is released and queued messages are dropped with it.
func (m *Manager) Cancel(id uuid.UUID) error {
	m.mu.Lock()
	ctrl, ok := m.sessions[id]
	cancel := m.cancels[id]
	delete(m.sessions, id)
	delete(m.cancels, id)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}

	ctrl.Cancel()
	if cancel != nil {
		cancel()
	}
	m.deps.Logger.Info("session cancelled", "session_id", id)
	return nil
}

// Shutdown cancels every live session.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Cancel(id)
	}
}

// Count reports live sessions, for health checks.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
