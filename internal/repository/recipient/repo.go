package recipient

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bangbuy/notification-service/internal/model"
)

var (
	ErrPrefsNotFound = errors.New("recipient preferences not found")
)

// Repository provides methods to interact with the recipient_prefs table.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new recipient preferences repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves the notification preferences for a user.
func (r *Repository) Get(ctx context.Context, userID uuid.UUID) (model.RecipientPrefs, error) {
	query := `
		SELECT user_id, email, enabled
		FROM recipient_prefs
		WHERE user_id = $1;
    `

	var p model.RecipientPrefs
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&p.UserID, &p.Email, &p.Enabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RecipientPrefs{}, ErrPrefsNotFound
		}

		return model.RecipientPrefs{}, fmt.Errorf("failed to get recipient prefs: %w", err)
	}

	return p, nil
}
