package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is a state of the creation session machine.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionLoading    SessionState = "loading"
	SessionReady      SessionState = "ready"
	SessionCreating   SessionState = "creating"
	SessionProcessing SessionState = "processing"
	SessionComplete   SessionState = "complete"
	SessionError      SessionState = "error"
	SessionTimedOut   SessionState = "timed_out"
	SessionSkipped    SessionState = "skipped"
)

// Terminal reports whether no further transitions are possible.
// Error and TimedOut are user-recoverable and therefore not terminal.
func (s SessionState) Terminal() bool {
	return s == SessionComplete
}

// SessionSnapshot is a point-in-time view of a creation session,
// safe to hand across goroutines.
type SessionSnapshot struct {
	ID        uuid.UUID    `json:"id"`
	UserID    string       `json:"user_id"`
	State     SessionState `json:"state"`
	Gender    Gender       `json:"gender"`
	Avatar    *AvatarState `json:"avatar,omitempty"`
	LastError *AvatarError `json:"last_error,omitempty"`
	Attempts  int          `json:"attempts"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
