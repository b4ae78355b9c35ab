package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/api/respond"
	"github.com/bangbuy/notification-service/internal/config"
	"github.com/bangbuy/notification-service/internal/model"
	"github.com/bangbuy/notification-service/internal/repository/job"
)

// ingestService decides the notification treatment for a new message.
type ingestService interface {
	ProcessMessage(ctx context.Context, strategy retry.Strategy, ev model.MessageEvent) error
}

// digestService clears accumulated unread state when a conversation is read.
type digestService interface {
	Clear(ctx context.Context, recipientID, conversationID uuid.UUID) error
}

// deliveryService answers job status lookups.
type deliveryService interface {
	Status(ctx context.Context, strategy retry.Strategy, id uuid.UUID) (model.JobStatus, error)
}

// Handler handles HTTP requests from the message-creation and
// conversation-read code paths.
type Handler struct {
	ingest    ingestService
	digest    digestService
	delivery  deliveryService
	validator *validator.Validate
	cfg       *config.Config
}

func NewHandler(
	ingest ingestService,
	digest digestService,
	delivery deliveryService,
	v *validator.Validate,
	cfg *config.Config,
) *Handler {
	return &Handler{ingest: ingest, digest: digest, delivery: delivery, validator: v, cfg: cfg}
}

// MessageRequest represents the JSON body posted after a message row is
// committed.
type MessageRequest struct {
	MessageID           string `json:"message_id" validate:"required,uuid"`
	ConversationID      string `json:"conversation_id" validate:"required,uuid"`
	SenderID            string `json:"sender_id" validate:"required,uuid"`
	ReceiverID          string `json:"receiver_id" validate:"required,uuid"`
	SenderName          string `json:"sender_name" validate:"required"`
	Content             string `json:"content" validate:"required"`
	MessageType         string `json:"message_type"`
	FirstInConversation bool   `json:"first_in_conversation"`
}

// Message handles HTTP POST requests for new message events.
//
// Validation failures are rejected with 400. Anything past validation is
// fire-and-forget: failures are logged and the caller still gets 202,
// because a notification problem must never fail message creation.
func (h *Handler) Message(c *ginext.Context) {
	var req MessageRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	ev := model.MessageEvent{
		MessageID:           uuid.MustParse(req.MessageID),
		ConversationID:      uuid.MustParse(req.ConversationID),
		SenderID:            uuid.MustParse(req.SenderID),
		RecipientID:         uuid.MustParse(req.ReceiverID),
		SenderName:          req.SenderName,
		Content:             req.Content,
		MessageType:         req.MessageType,
		FirstInConversation: req.FirstInConversation,
	}

	if err := h.ingest.ProcessMessage(c.Request.Context(), h.cfg.Retry, ev); err != nil {
		zlog.Logger.Error().Err(err).Str("message_id", req.MessageID).Msg("failed to process message event")
	}

	respond.Accepted(c.Writer, "accepted")
}

// ReadRequest represents the JSON body posted when a recipient opens a
// conversation.
type ReadRequest struct {
	RecipientID    string `json:"recipient_id" validate:"required,uuid"`
	ConversationID string `json:"conversation_id" validate:"required,uuid"`
}

// Read handles HTTP POST requests from the conversation-read code path.
// It clears the digest state for the key; clearing a key with no state
// is a no-op and still returns 200.
func (h *Handler) Read(c *ginext.Context) {
	var req ReadRequest

	if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to decode request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.validator.Struct(req); err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to validate request body")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("validation error: %s", err.Error()))
		return
	}

	err := h.digest.Clear(c.Request.Context(), uuid.MustParse(req.RecipientID), uuid.MustParse(req.ConversationID))
	if err != nil {
		zlog.Logger.Error().Err(err).
			Str("recipient_id", req.RecipientID).
			Str("conversation_id", req.ConversationID).
			Msg("failed to clear digest")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, "cleared")
}

// JobStatus handles HTTP GET requests to retrieve the status of a
// notification job.
func (h *Handler) JobStatus(c *ginext.Context) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("id", idStr).Msg("failed to parse id")
		respond.Fail(c.Writer, http.StatusBadRequest, fmt.Errorf("invalid id"))
		return
	}

	status, err := h.delivery.Status(c.Request.Context(), h.cfg.Retry, id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			zlog.Logger.Warn().Str("id", idStr).Err(err).Msg("job not found")
			respond.Fail(c.Writer, http.StatusNotFound, fmt.Errorf("job not found"))
			return
		}

		zlog.Logger.Error().Err(err).Str("id", idStr).Msg("failed to get job status")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.OK(c.Writer, status)
}
