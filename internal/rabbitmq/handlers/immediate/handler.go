// Package immediate consumes first-message events from the dispatch queue
// and delivers them right away: one email plus a best-effort push to every
// registered device. Everything here is best-effort; a failure is logged
// and the message-creation path never learns about it.
package immediate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/model"
	"github.com/bangbuy/notification-service/internal/rabbitmq/queue"
	"github.com/bangbuy/notification-service/pkg/email"
)

type prefsRepository interface {
	Get(ctx context.Context, userID uuid.UUID) (model.RecipientPrefs, error)
}

type deviceRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceToken, error)
}

type sender interface {
	Send(m email.Message) (string, error)
}

type pusher interface {
	Send(token, title, body string) error
}

type Handler struct {
	prefs   prefsRepository
	devices deviceRepository
	sender  sender
	pusher  pusher
}

func NewHandler(prefs prefsRepository, devices deviceRepository, sender sender, pusher pusher) *Handler {
	return &Handler{prefs: prefs, devices: devices, sender: sender, pusher: pusher}
}

func (h *Handler) HandleMessage(ctx context.Context, msg queue.ImmediateMessage, strategy retry.Strategy) {
	zlog.Logger.Info().
		Str("message_id", msg.MessageID.String()).
		Str("recipient_id", msg.RecipientID.String()).
		Msg("handling immediate notification")

	prefs, err := h.prefs.Get(ctx, msg.RecipientID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("message_id", msg.MessageID.String()).Msg("failed to get recipient prefs, dropping immediate email")
	} else if prefs.Enabled {
		h.sendEmail(ctx, msg, prefs.Email, strategy)
	}

	h.sendPush(ctx, msg)
}

func (h *Handler) sendEmail(ctx context.Context, msg queue.ImmediateMessage, to string, strategy retry.Strategy) {
	m := renderImmediate(msg, to)

	err := retry.Do(func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			_, sendErr := h.sender.Send(m)
			return sendErr
		}
	}, strategy)

	if err != nil {
		zlog.Logger.Error().Err(err).Str("message_id", msg.MessageID.String()).Msg("immediate email failed")
		return
	}

	zlog.Logger.Info().Str("message_id", msg.MessageID.String()).Msg("immediate email sent")
}

func (h *Handler) sendPush(ctx context.Context, msg queue.ImmediateMessage) {
	tokens, err := h.devices.ListByUser(ctx, msg.RecipientID)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("recipient_id", msg.RecipientID.String()).Msg("failed to list device tokens")
		return
	}

	title := fmt.Sprintf("New message from %s", msg.SenderName)
	for _, t := range tokens {
		if err := h.pusher.Send(t.Token, title, msg.Content); err != nil {
			zlog.Logger.Warn().Err(err).
				Str("recipient_id", msg.RecipientID.String()).
				Str("device_id", t.DeviceID).
				Msg("push delivery failed")
		}
	}
}

// renderImmediate builds the first-message email. The dedupe key is the
// message id, stable per logical event, so queue redelivery cannot send
// the same email twice through a provider that honors the key.
func renderImmediate(msg queue.ImmediateMessage, to string) email.Message {
	subject := fmt.Sprintf("%s sent you a message on BangBuy", msg.SenderName)

	text := fmt.Sprintf("%s wrote:\n\n%q\n\nOpen BangBuy to read and reply.\n", msg.SenderName, msg.Content)

	return email.Message{
		To:        to,
		Subject:   subject,
		Text:      text,
		DedupeKey: "msg:" + msg.MessageID.String(),
	}
}
