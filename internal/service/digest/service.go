// Package digest implements the unread-message accumulator.
//
// It guarantees at most one outstanding notification obligation per
// (recipient, conversation) pair no matter how many messages pile up:
// each qualifying message increments the existing entry and refreshes
// the open job's payload instead of creating another email.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bangbuy/notification-service/internal/model"
)

type entryRepository interface {
	Upsert(ctx context.Context, recipientID, conversationID uuid.UUID, senderName string) (model.DigestEntry, error)
	Delete(ctx context.Context, recipientID, conversationID uuid.UUID) error
}

type jobRepository interface {
	EnsureOpen(ctx context.Context, recipientID, conversationID uuid.UUID, kind model.JobKind, nextAttemptAt time.Time, payload model.DigestPayload) (uuid.UUID, error)
	CancelPending(ctx context.Context, recipientID, conversationID uuid.UUID) error
}

type Service struct {
	entries entryRepository
	jobs    jobRepository

	initialDelay time.Duration
}

func NewService(entries entryRepository, jobs jobRepository, initialDelay time.Duration) *Service {
	return &Service{entries: entries, jobs: jobs, initialDelay: initialDelay}
}

// RecordUnread accumulates one unread message and makes sure an open
// pending job exists for the key, with its payload reflecting the latest
// unread state. The job only becomes due after the initial delay so a
// burst of messages collapses into one email.
func (s *Service) RecordUnread(ctx context.Context, recipientID, conversationID uuid.UUID, senderName, excerpt string) error {
	entry, err := s.entries.Upsert(ctx, recipientID, conversationID, senderName)
	if err != nil {
		return fmt.Errorf("record unread: %w", err)
	}

	payload := model.DigestPayload{
		SenderName:  entry.LastSenderName,
		UnreadCount: entry.UnreadCount,
		Excerpt:     excerpt,
		FirstUnread: entry.FirstMessageAt,
		LastUnread:  entry.LastMessageAt,
	}

	_, err = s.jobs.EnsureOpen(ctx, recipientID, conversationID, model.KindMessageDigest, time.Now().UTC().Add(s.initialDelay), payload)
	if err != nil {
		return fmt.Errorf("ensure open job: %w", err)
	}

	return nil
}

// Clear drops the accumulated state for a key after the recipient read the
// conversation, and cancels the open pending job if one exists. Clearing a
// key with no state is a no-op.
func (s *Service) Clear(ctx context.Context, recipientID, conversationID uuid.UUID) error {
	if err := s.entries.Delete(ctx, recipientID, conversationID); err != nil {
		return fmt.Errorf("clear digest entry: %w", err)
	}

	if err := s.jobs.CancelPending(ctx, recipientID, conversationID); err != nil {
		return fmt.Errorf("cancel pending job: %w", err)
	}

	return nil
}
