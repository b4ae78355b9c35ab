package model

import (
	"time"

	"github.com/google/uuid"
)

// DigestEntry accumulates unread messages for one recipient in one
// conversation. At most one entry exists per (recipient, conversation)
// key; new messages increment it instead of creating duplicates.
type DigestEntry struct {
	RecipientID    uuid.UUID `json:"recipient_id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	UnreadCount    int       `json:"unread_count"`
	LastSenderName string    `json:"last_sender_name"`
	FirstMessageAt time.Time `json:"first_message_at"`
	LastMessageAt  time.Time `json:"last_message_at"`
}

// MessageEvent is a newly created chat message as reported by the
// message-creation code path.
type MessageEvent struct {
	MessageID           uuid.UUID
	ConversationID      uuid.UUID
	SenderID            uuid.UUID
	RecipientID         uuid.UUID
	SenderName          string
	Content             string
	MessageType         string
	FirstInConversation bool
}

// RecipientPrefs holds the notification settings for one user.
type RecipientPrefs struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	Enabled bool      `json:"enabled"`
}
