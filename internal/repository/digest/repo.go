package digest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bangbuy/notification-service/internal/model"
)

// Repository provides methods to interact with the digest_entries table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new digest repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Upsert records one more unread message for the (recipient, conversation)
// key and returns the resulting entry. The increment happens inside the
// upsert so concurrent ingests for the same key cannot lose counts.
func (r *Repository) Upsert(ctx context.Context, recipientID, conversationID uuid.UUID, senderName string) (model.DigestEntry, error) {
	query := `
		INSERT INTO digest_entries (
		    recipient_id, conversation_id, unread_count, last_sender_name, first_message_at, last_message_at
		) VALUES ($1, $2, 1, $3, now(), now())
		ON CONFLICT (recipient_id, conversation_id)
		DO UPDATE SET
		    unread_count = digest_entries.unread_count + 1,
		    last_sender_name = EXCLUDED.last_sender_name,
		    last_message_at = now()
		RETURNING recipient_id, conversation_id, unread_count, last_sender_name, first_message_at, last_message_at;
    `

	var e model.DigestEntry
	err := r.db.QueryRowContext(ctx, query, recipientID, conversationID, senderName).
		Scan(&e.RecipientID, &e.ConversationID, &e.UnreadCount, &e.LastSenderName, &e.FirstMessageAt, &e.LastMessageAt)
	if err != nil {
		return model.DigestEntry{}, fmt.Errorf("failed to upsert digest entry: %w", err)
	}

	return e, nil
}

// Delete removes the digest entry for a key. Deleting a key that has no
// entry is not an error: clearing is idempotent.
func (r *Repository) Delete(ctx context.Context, recipientID, conversationID uuid.UUID) error {
	query := `
		DELETE FROM digest_entries
		WHERE recipient_id = $1 AND conversation_id = $2;
    `

	_, err := r.db.ExecContext(ctx, query, recipientID, conversationID)
	if err != nil {
		return fmt.Errorf("failed to delete digest entry: %w", err)
	}

	return nil
}
