package device

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/api/respond"
	"github.com/bangbuy/notification-service/internal/model"
)

type deviceRepository interface {
	Upsert(ctx context.Context, t model.DeviceToken) error
}

// Handler registers push tokens per user and device.
type Handler struct {
	devices   deviceRepository
	validator *validator.Validate
}

func NewHandler(devices deviceRepository, v *validator.Validate) *Handler {
	return &Handler{devices: devices, validator: v}
}

// RegisterRequest represents the JSON body for device token registration.
type RegisterRequest struct {
	UserID   string `json:"user_id" validate:"required,uuid"`
	DeviceID string `json:"device_id" validate:"required"`
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required,oneof=ios android web"`
}

// Register handles HTTP POST requests to store a device's push token.
// Re-registering the same (user, device) pair replaces the old token.
func (h *Handler) Register(c *ginext.Context) {
	var req RegisterRequest

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

	token := model.DeviceToken{
		UserID:   uuid.MustParse(req.UserID),
		DeviceID: req.DeviceID,
		Token:    req.Token,
		Platform: req.Platform,
	}

	if err := h.devices.Upsert(c.Request.Context(), token); err != nil {
		zlog.Logger.Error().Err(err).Str("user_id", req.UserID).Msg("failed to register device token")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	respond.Created(c.Writer, "registered")
}
