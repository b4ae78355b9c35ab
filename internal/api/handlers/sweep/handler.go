package sweep

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/api/respond"
	"github.com/bangbuy/notification-service/internal/config"
	"github.com/bangbuy/notification-service/internal/service/delivery"
)

type sweepService interface {
	Sweep(ctx context.Context, strategy retry.Strategy) (delivery.Summary, error)
}

// Handler exposes the delivery sweep to external schedulers.
type Handler struct {
	service sweepService
	cfg     *config.Config
}

func NewHandler(s sweepService, cfg *config.Config) *Handler {
	return &Handler{service: s, cfg: cfg}
}

// Result is the JSON body returned to the scheduler.
type Result struct {
	Timestamp time.Time `json:"timestamp"`
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Errors    int       `json:"errors"`
}

// Trigger handles GET/POST requests from the external scheduler. It runs
// one sweep and reports the summary: 200 when everything succeeded, 207
// when some jobs failed, 500 when the job store could not be queried.
func (h *Handler) Trigger(c *ginext.Context) {
	if !h.authorized(c) {
		respond.Fail(c.Writer, http.StatusUnauthorized, fmt.Errorf("unauthorized"))
		return
	}

	sum, err := h.service.Sweep(c.Request.Context(), h.cfg.Retry)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("sweep failed")
		respond.Fail(c.Writer, http.StatusInternalServerError, fmt.Errorf("internal server error"))
		return
	}

	result := Result{
		Timestamp: time.Now().UTC(),
		Processed: sum.Processed,
		Sent:      sum.Sent,
		Failed:    sum.Failed,
		Errors:    sum.Errors,
	}

	status := http.StatusOK
	if sum.Failed > 0 || sum.Errors > 0 {
		status = http.StatusMultiStatus
	}

	respond.JSON(c.Writer, status, result)
}

// authorized checks the bearer-token shared secret. When no secret is
// configured the endpoint is open, which is only sane behind a private
// network.
func (h *Handler) authorized(c *ginext.Context) bool {
	secret := h.cfg.Sweep.Secret
	if secret == "" {
		return true
	}

	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	return subtle.ConstantTimeCompare([]byte(token), []byte(secret)) == 1
}
