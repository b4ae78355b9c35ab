package recipient

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/dbpg"
)

func setupMockDB(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open mock db: %v", err)
	}

	wrappedDB := &dbpg.DB{Master: db}
	repo := NewRepository(wrappedDB)

	return repo, mock
}

func TestGet(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT user_id, email, enabled
		FROM recipient_prefs
		WHERE user_id = $1;
    `)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "enabled"}).
			AddRow(userID, "to@example.com", true))

	p, err := repo.Get(context.Background(), userID)
	assert.NoError(t, err)
	assert.Equal(t, userID, p.UserID)
	assert.Equal(t, "to@example.com", p.Email)
	assert.True(t, p.Enabled)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT user_id, email, enabled
		FROM recipient_prefs
		WHERE user_id = $1;
    `)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "enabled"}))

	_, err := repo.Get(context.Background(), userID)
	assert.ErrorIs(t, err, ErrPrefsNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
