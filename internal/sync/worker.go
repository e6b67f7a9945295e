package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iranverse/avatar-engine/internal/domain"
)

const pollInterval = 5 * time.Second

// Worker drains avatar_sync_queue and pushes completed avatars to the
// profile backend. Outcomes only leave through the Notifier; sessions
// are already Complete by the time a job exists.
type Worker struct {
	db       DB
	uploader Uploader
	notifier Notifier
	logger   *slog.Logger
	stopCh   chan struct{}
}

func NewWorker(db DB, uploader Uploader, notifier Notifier, logger *slog.Logger) *Worker {
	return &Worker{
		db:       db,
		uploader: uploader,
		notifier: notifier,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	w.logger.Info("avatar sync worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("avatar sync worker stopped")
			return
		case <-w.stopCh:
			w.logger.Info("avatar sync worker stopped")
			return
		case <-ticker.C:
			if err := w.processQueue(ctx); err != nil {
				w.logger.Error("failed to process sync queue", "error", err)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) processQueue(ctx context.Context) error {
	query := `
		SELECT id, session_id, payload, attempts, max_attempts
		FROM avatar_sync_queue
		WHERE status IN ('pending', 'retrying') AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 10
	`

	rows, err := w.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("query sync queue: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var job Job

		err := rows.Scan(
			&job.ID, &job.SessionID, &job.Payload,
			&job.Attempts, &job.MaxAttempts,
		)
		if err != nil {
			w.logger.Error("failed to scan sync job", "error", err)
			continue
		}

		if err := w.processJob(ctx, &job); err != nil {
			w.logger.Error("failed to process sync job",
				"job_id", job.ID,
				"session_id", job.SessionID,
				"attempts", job.Attempts,
				"error", err,
			)
		}
	}

	return nil
}

func (w *Worker) processJob(ctx context.Context, job *Job) error {
	var req domain.UpdateAvatarRequest
	if err := json.Unmarshal(job.Payload, &req); err != nil {
		return w.markFailed(ctx, job, fmt.Sprintf("invalid payload: %v", err))
	}

	if err := w.uploader.UpdateAvatar(ctx, &req); err != nil {
		return w.scheduleRetry(ctx, job, err.Error())
	}

	return w.markComplete(ctx, job)
}

func (w *Worker) scheduleRetry(ctx context.Context, job *Job, errorMsg string) error {
	if job.Attempts+1 >= job.MaxAttempts {
		return w.markFailed(ctx, job, errorMsg)
	}

	delay := time.Duration(1<<job.Attempts) * time.Second
	nextRetry := time.Now().Add(delay)

	query := `
		UPDATE avatar_sync_queue
		SET attempts = attempts + 1,
		    next_retry_at = $1,
		    last_error = $2,
		    status = 'retrying',
		    updated_at = NOW()
		WHERE id = $3
	`

	_, err := w.db.Exec(ctx, query, nextRetry, errorMsg, job.ID)
	if err != nil {
		return fmt.Errorf("schedule retry: %w", err)
	}

	w.logger.Info("sync job scheduled for retry",
		"job_id", job.ID,
		"attempts", job.Attempts+1,
		"next_retry", nextRetry,
	)

	w.notify(job.SessionID, NotifySyncRetry, errorMsg)
	return nil
}

func (w *Worker) markComplete(ctx context.Context, job *Job) error {
	query := `
		UPDATE avatar_sync_queue
		SET status = 'delivered',
		    updated_at = NOW()
		WHERE id = $1
	`

	_, err := w.db.Exec(ctx, query, job.ID)
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}

	w.logger.Info("sync job completed", "job_id", job.ID, "session_id", job.SessionID)
	w.notify(job.SessionID, NotifySynced, "")
	return nil
}

func (w *Worker) markFailed(ctx context.Context, job *Job, errorMsg string) error {
	query := `
		UPDATE avatar_sync_queue
		SET status = 'failed',
		    last_error = $1,
		    updated_at = NOW()
		WHERE id = $2
	`

	_, err := w.db.Exec(ctx, query, errorMsg, job.ID)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	w.logger.Warn("sync job failed", "job_id", job.ID, "session_id", job.SessionID, "error", errorMsg)
	w.notify(job.SessionID, NotifySyncFailed, errorMsg)
	return nil
}

func (w *Worker) notify(sessionID uuid.UUID, kind, message string) {
	if w.notifier == nil {
		return
	}
	w.notifier.Notify(sessionID, Notification{
		Type:      kind,
		SessionID: sessionID,
		Message:   message,
		Timestamp: time.Now(),
	})
}
