package device

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bangbuy/notification-service/internal/model"
)

// Repository provides methods to interact with the device_tokens table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new device token repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores or replaces the push token for one (user, device) pair.
func (r *Repository) Upsert(ctx context.Context, t model.DeviceToken) error {
	query := `
		INSERT INTO device_tokens (user_id, device_id, token, platform, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET token = EXCLUDED.token, platform = EXCLUDED.platform, updated_at = now();
    `

	_, err := r.db.ExecContext(ctx, query, t.UserID, t.DeviceID, t.Token, t.Platform)
	if err != nil {
		return fmt.Errorf("failed to upsert device token: %w", err)
	}

	return nil
}

// ListByUser returns all registered push tokens for a user.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.DeviceToken, error) {
	query := `
		SELECT user_id, device_id, token, platform, updated_at
		FROM device_tokens
		WHERE user_id = $1;
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []model.DeviceToken
	for rows.Next() {
		var t model.DeviceToken
		if err := rows.Scan(&t.UserID, &t.DeviceID, &t.Token, &t.Platform, &t.UpdatedAt); err != nil {
			return nil, err
		}

		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}
