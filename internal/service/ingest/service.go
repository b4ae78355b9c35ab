// Package ingest decides the notification treatment for newly created
// messages: first messages in a conversation go out immediately through
// the dispatch queue, everything else folds into the recipient's digest.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/model"
	"github.com/bangbuy/notification-service/internal/rabbitmq/queue"
	"github.com/bangbuy/notification-service/internal/repository/recipient"
)

const excerptLimit = 120

type deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
}

type aggregator interface {
	RecordUnread(ctx context.Context, recipientID, conversationID uuid.UUID, senderName, excerpt string) error
}

type immediatePublisher interface {
	Publish(msg queue.ImmediateMessage, strategy retry.Strategy) error
}

type prefsRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (model.RecipientPrefs, error)
}

type Service struct {
	dedupe     deduper
	aggregator aggregator
	queue      immediatePublisher
	prefs      prefsRepository
}

func NewService(dedupe deduper, aggregator aggregator, queue immediatePublisher, prefs prefsRepository) *Service {
	return &Service{dedupe: dedupe, aggregator: aggregator, queue: queue, prefs: prefs}
}

// ProcessMessage routes one message event. The returned error is for the
// caller's logs only: the message itself is already committed and must
// never be rolled back because a notification failed.
func (s *Service) ProcessMessage(ctx context.Context, strategy retry.Strategy, ev model.MessageEvent) error {
	first, err := s.dedupe.Claim(ctx, dedupeKey(ev.MessageID))
	if err != nil {
		return fmt.Errorf("claim dedupe key: %w", err)
	}

	if !first {
		zlog.Logger.Info().Str("message_id", ev.MessageID.String()).Msg("duplicate message event, skipping")
		return nil
	}

	if ev.FirstInConversation && s.recipientNotifiable(ctx, ev.RecipientID) {
		msg := queue.ImmediateMessage{
			MessageID:      ev.MessageID,
			ConversationID: ev.ConversationID,
			SenderID:       ev.SenderID,
			RecipientID:    ev.RecipientID,
			SenderName:     ev.SenderName,
			Content:        excerpt(ev.Content),
			CreatedAt:      time.Now().UTC(),
		}

		if err := s.queue.Publish(msg, strategy); err != nil {
			// The obligation is not lost: fall back to the digest so a
			// broker outage degrades to a delayed email, not a missing one.
			zlog.Logger.Error().Err(err).Str("message_id", ev.MessageID.String()).Msg("failed to publish immediate message, falling back to digest")
			return s.recordDigest(ctx, ev)
		}

		return nil
	}

	return s.recordDigest(ctx, ev)
}

func (s *Service) recordDigest(ctx context.Context, ev model.MessageEvent) error {
	if err := s.aggregator.RecordUnread(ctx, ev.RecipientID, ev.ConversationID, ev.SenderName, excerpt(ev.Content)); err != nil {
		return fmt.Errorf("record unread: %w", err)
	}

	return nil
}

// recipientNotifiable reports whether the recipient has email notifications
// enabled. Lookup failures count as not notifiable: the digest still records
// the unread message, so nothing is lost.
func (s *Service) recipientNotifiable(ctx context.Context, userID uuid.UUID) bool {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, recipient.ErrPrefsNotFound) {
			zlog.Logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to get recipient prefs")
		}
		return false
	}

	return prefs.Enabled
}

func dedupeKey(messageID uuid.UUID) string {
	return "msg:" + messageID.String()
}

func excerpt(content string) string {
	runes := []rune(content)
	if len(runes) <= excerptLimit {
		return content
	}

	return string(runes[:excerptLimit]) + "…"
}
