package model

import (
	"time"

	"github.com/google/uuid"
)

// DeviceToken is a persisted push token for one device of one user.
// Keyed by (user, device) so reinstalls and multi-device users replace
// their own token instead of clobbering a global one.
type DeviceToken struct {
	UserID    uuid.UUID `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	Token     string    `json:"token"`
	Platform  string    `json:"platform"` // "ios", "android" or "web"
	UpdatedAt time.Time `json:"updated_at"`
}
