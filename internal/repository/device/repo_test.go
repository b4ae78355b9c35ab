package device

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"

	"github.com/bangbuy/notification-service/internal/model"
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

func TestUpsert(t *testing.T) {
	repo, mock := setupMockDB(t)

	token := model.DeviceToken{
		UserID:   uuid.New(),
		DeviceID: "iphone-15",
		Token:    "ExponentPushToken[abc123]",
		Platform: "ios",
	}

	mock.ExpectExec(regexp.QuoteMeta(`
		INSERT INTO device_tokens (user_id, device_id, token, platform, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (user_id, device_id)
		DO UPDATE SET token = EXCLUDED.token, platform = EXCLUDED.platform, updated_at = now();
    `)).
		WithArgs(token.UserID, token.DeviceID, token.Token, token.Platform).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Upsert(context.Background(), token)
	assert.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUser(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT user_id, device_id, token, platform, updated_at
		FROM device_tokens
		WHERE user_id = $1;
    `)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "device_id", "token", "platform", "updated_at"}).
			AddRow(userID, "iphone-15", "tok-1", "ios", now).
			AddRow(userID, "macbook", "tok-2", "web", now))

	tokens, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "tok-1", tokens[0].Token)
	assert.Equal(t, "web", tokens[1].Platform)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListByUser_Empty(t *testing.T) {
	repo, mock := setupMockDB(t)

	userID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`
		SELECT user_id, device_id, token, platform, updated_at
		FROM device_tokens
		WHERE user_id = $1;
    `)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "device_id", "token", "platform", "updated_at"}))

	tokens, err := repo.ListByUser(context.Background(), userID)
	assert.NoError(t, err)
	assert.Empty(t, tokens)

	assert.NoError(t, mock.ExpectationsWereMet())
}
