package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/wb-go/wbf/dbpg"
)

const uniqueViolation = "23505"

// Repository provides methods to interact with the message_dedupe table.
//
// A dedupe key is claimed exactly once; every later claim for the same key
// reports a duplicate. Keys are stable per logical event, never per attempt,
// so a retried ingest call cannot trigger a second email.
type Repository struct {
	db *dbpg.DB
}

// NewRepository creates a new dedupe repository.
func NewRepository(db *dbpg.DB) *Repository {
	return &Repository{db: db}
}

// Claim records the key and reports whether this call was the first to do
// so. The unique constraint on dedupe_key arbitrates concurrent claims.
func (r *Repository) Claim(ctx context.Context, key string) (bool, error) {
	query := `
		INSERT INTO message_dedupe (dedupe_key)
		VALUES ($1);
    `

	_, err := r.db.ExecContext(ctx, query, key)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return false, nil
		}

		return false, fmt.Errorf("failed to claim dedupe key: %w", err)
	}

	return true, nil
}
