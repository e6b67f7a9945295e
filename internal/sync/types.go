package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iranverse/avatar-engine/internal/domain"
)

// Job is a queued best-effort backend sync attempt for one completed
// creation session.
type Job struct {
	ID          uuid.UUID  `json:"id"`
	SessionID   uuid.UUID  `json:"session_id"`
	Payload     []byte     `json:"payload"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	Status      string     `json:"status"`
	LastError   string     `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Notification is the decoupled result-delivery path for sync outcomes.
// It never feeds back into the session state machine.
type Notification struct {
	Type      string    `json:"type"`
	SessionID uuid.UUID `json:"session_id"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	NotifySynced     = "avatar.synced"
	NotifySyncRetry  = "avatar.sync_retry"
	NotifySyncFailed = "avatar.sync_failed"
)

// Uploader pushes a completed avatar to the upstream profile backend.
type Uploader interface {
	UpdateAvatar(ctx context.Context, req *domain.UpdateAvatarRequest) error
}

// Notifier delivers sync outcomes to whoever is listening for the session.
type Notifier interface {
	Notify(sessionID uuid.UUID, n Notification)
}
