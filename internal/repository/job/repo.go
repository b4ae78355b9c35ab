package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bangbuy/notification-service/internal/model"
)

var (
	ErrJobNotFound = errors.New("notification job not found")
)

// Repository provides methods to interact with the notification_jobs table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new job repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// EnsureOpen inserts a pending digest job for the (recipient, conversation)
// key, or refreshes the payload of the already open one. Open means pending
// or processing: a claimed job still blocks a second one for its key, and a
// message arriving mid-delivery lands in the claimed job's payload so a
// later retry carries the latest unread state. The partial unique index on
// open jobs makes the upsert atomic under concurrent ingests.
func (r *Repository) EnsureOpen(
	ctx context.Context,
	recipientID, conversationID uuid.UUID,
	kind model.JobKind,
	nextAttemptAt time.Time,
	payload model.DigestPayload,
) (uuid.UUID, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO notification_jobs (
		    recipient_id, conversation_id, kind, status, attempts, next_attempt_at, payload
		) VALUES ($1, $2, $3, 'pending', 0, $4, $5)
		ON CONFLICT (recipient_id, conversation_id) WHERE status IN ('pending', 'processing')
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()
		RETURNING id;
    `

	var id uuid.UUID
	err = r.db.QueryRowContext(ctx, query, recipientID, conversationID, kind, nextAttemptAt, body).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to ensure open job: %w", err)
	}

	return id, nil
}

// ClaimDue atomically moves up to limit due jobs from pending to processing
// and returns them. FOR UPDATE SKIP LOCKED keeps overlapping sweeps from
// claiming the same rows.
func (r *Repository) ClaimDue(ctx context.Context, limit int) ([]model.NotificationJob, error) {
	query := `
		UPDATE notification_jobs
		SET status = 'processing', updated_at = now()
		WHERE id IN (
		    SELECT id FROM notification_jobs
		    WHERE status = 'pending' AND next_attempt_at <= now()
		    ORDER BY next_attempt_at
		    LIMIT $1
		    FOR UPDATE SKIP LOCKED
		)
		RETURNING id, recipient_id, conversation_id, kind, status, attempts, next_attempt_at, payload;
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.NotificationJob
	for rows.Next() {
		var (
			j    model.NotificationJob
			body []byte
		)
		if err := rows.Scan(&j.ID, &j.RecipientID, &j.ConversationID, &j.Kind, &j.Status, &j.Attempts, &j.NextAttemptAt, &body); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(body, &j.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload for %s: %w", j.ID, err)
		}

		jobs = append(jobs, j)
	}

	return jobs, rows.Err()
}

// MarkSent records a successful delivery. The attempt that succeeded is
// counted so attempts reflects the total number of provider calls.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notification_jobs
		SET status = 'sent', attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status = 'processing';
    `

	return r.exec(ctx, query, id)
}

// Reschedule returns a job to pending after a retryable failure, with the
// next attempt gated behind nextAttemptAt.
func (r *Repository) Reschedule(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	query := `
		UPDATE notification_jobs
		SET status = 'pending', attempts = attempts + 1, next_attempt_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing';
    `

	return r.exec(ctx, query, id, nextAttemptAt)
}

// Release returns a claimed job to pending without counting a delivery
// attempt. Used when the claim could not be acted on at all, so no
// provider call happened.
func (r *Repository) Release(ctx context.Context, id uuid.UUID, nextAttemptAt time.Time) error {
	query := `
		UPDATE notification_jobs
		SET status = 'pending', next_attempt_at = $2, updated_at = now()
		WHERE id = $1 AND status = 'processing';
    `

	return r.exec(ctx, query, id, nextAttemptAt)
}

// MarkFailed moves a job to the terminal failed state.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notification_jobs
		SET status = 'failed', attempts = attempts + 1, updated_at = now()
		WHERE id = $1 AND status = 'processing';
    `

	return r.exec(ctx, query, id)
}

// Cancel moves a claimed job to the terminal cancelled state. Used when
// the recipient turned out not to be notifiable at delivery time.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE notification_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND status = 'processing';
    `

	return r.exec(ctx, query, id)
}

// ReleaseStale returns jobs stuck in processing back to pending. A job
// only stays in processing this long when the sweep that claimed it died
// mid-flight.
func (r *Repository) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		UPDATE notification_jobs
		SET status = 'pending', updated_at = now()
		WHERE status = 'processing' AND updated_at < now() - make_interval(secs => $1);
    `

	res, err := r.db.ExecContext(ctx, query, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to release stale jobs: %w", err)
	}

	rows, _ := res.RowsAffected()

	return int(rows), nil
}

// CancelPending cancels the open pending job for a key, if any. Used when
// the recipient reads the conversation before the sweep got to it. Jobs
// already claimed by a worker are left alone.
func (r *Repository) CancelPending(ctx context.Context, recipientID, conversationID uuid.UUID) error {
	query := `
		UPDATE notification_jobs
		SET status = 'cancelled', updated_at = now()
		WHERE recipient_id = $1 AND conversation_id = $2 AND status = 'pending';
    `

	_, err := r.db.ExecContext(ctx, query, recipientID, conversationID)
	if err != nil {
		return fmt.Errorf("failed to cancel pending job: %w", err)
	}

	return nil
}

// GetStatusByID retrieves the status of a job by its ID.
func (r *Repository) GetStatusByID(ctx context.Context, id uuid.UUID) (model.JobStatus, error) {
	query := `
		SELECT status
		FROM notification_jobs
		WHERE id = $1;
    `

	var status model.JobStatus
	err := r.db.QueryRowContext(ctx, query, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrJobNotFound
		}

		return "", fmt.Errorf("failed to get job status: %w", err)
	}

	return status, nil
}

func (r *Repository) exec(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, _ := res.RowsAffected()

	if rows == 0 {
		return ErrJobNotFound
	}

	return nil
}
