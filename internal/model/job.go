package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the delivery state of a notification job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"    // waiting to become due
	StatusProcessing JobStatus = "processing" // claimed by a sweep
	StatusSent       JobStatus = "sent"       // delivered, terminal
	StatusFailed     JobStatus = "failed"     // retries exhausted or hard reject, terminal
	StatusCancelled  JobStatus = "cancelled"  // recipient read the conversation before delivery, terminal
)

// JobKind distinguishes what kind of email a job renders.
type JobKind string

const (
	KindMessageDigest        JobKind = "message_digest"
	KindRecommendationDigest JobKind = "recommendation_digest"
)

// NotificationJob represents one deferred email waiting for delivery.
//
// A job is due when Status is pending and NextAttemptAt is in the past.
// A job counts as open while pending or processing: only one open job
// exists per (recipient, conversation) key, and new messages for the key
// refresh its payload, even mid-delivery, so a retry always renders the
// latest unread state.
type NotificationJob struct {
	ID             uuid.UUID     `json:"id"`
	RecipientID    uuid.UUID     `json:"recipient_id"`
	ConversationID uuid.UUID     `json:"conversation_id"`
	Kind           JobKind       `json:"kind"`
	Status         JobStatus     `json:"status"`
	Attempts       int           `json:"attempts"` // delivery attempts performed so far
	NextAttemptAt  time.Time     `json:"next_attempt_at"`
	Payload        DigestPayload `json:"payload"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// DigestPayload carries everything needed to render the digest email.
// It is refreshed in place on every qualifying message until the job
// is claimed, so the email always reflects the latest unread state.
type DigestPayload struct {
	SenderName  string    `json:"sender_name"`
	UnreadCount int       `json:"unread_count"`
	Excerpt     string    `json:"excerpt"`
	FirstUnread time.Time `json:"first_unread_at"`
	LastUnread  time.Time `json:"last_unread_at"`
}
