package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangbuy/notification-service/internal/model"
)

type key struct {
	recipient    uuid.UUID
	conversation uuid.UUID
}

type fakeEntryRepo struct {
	entries   map[key]*model.DigestEntry
	upsertErr error
}

func newFakeEntryRepo() *fakeEntryRepo {
	return &fakeEntryRepo{entries: make(map[key]*model.DigestEntry)}
}

func (f *fakeEntryRepo) Upsert(_ context.Context, recipientID, conversationID uuid.UUID, senderName string) (model.DigestEntry, error) {
	if f.upsertErr != nil {
		return model.DigestEntry{}, f.upsertErr
	}

	k := key{recipientID, conversationID}
	e, ok := f.entries[k]
	if !ok {
		e = &model.DigestEntry{
			RecipientID:    recipientID,
			ConversationID: conversationID,
			FirstMessageAt: time.Now().UTC(),
		}
		f.entries[k] = e
	}

	e.UnreadCount++
	e.LastSenderName = senderName
	e.LastMessageAt = time.Now().UTC()

	return *e, nil
}

func (f *fakeEntryRepo) Delete(_ context.Context, recipientID, conversationID uuid.UUID) error {
	delete(f.entries, key{recipientID, conversationID})
	return nil
}

type fakeJobRepo struct {
	ensured   []model.DigestPayload
	ensureKey []key
	cancelled []key
}

func (f *fakeJobRepo) EnsureOpen(_ context.Context, recipientID, conversationID uuid.UUID, _ model.JobKind, _ time.Time, payload model.DigestPayload) (uuid.UUID, error) {
	f.ensured = append(f.ensured, payload)
	f.ensureKey = append(f.ensureKey, key{recipientID, conversationID})
	return uuid.New(), nil
}

func (f *fakeJobRepo) CancelPending(_ context.Context, recipientID, conversationID uuid.UUID) error {
	f.cancelled = append(f.cancelled, key{recipientID, conversationID})
	return nil
}

func TestRecordUnread_Coalesces(t *testing.T) {
	entries := newFakeEntryRepo()
	jobs := &fakeJobRepo{}
	svc := NewService(entries, jobs, 15*time.Minute)

	recipientID := uuid.New()
	conversationID := uuid.New()

	senders := []string{"Alice", "Alice", "Bob"}
	for _, sender := range senders {
		err := svc.RecordUnread(context.Background(), recipientID, conversationID, sender, "excerpt")
		require.NoError(t, err)
	}

	// one entry with the full count, last-writer-wins on the sender
	entry := entries.entries[key{recipientID, conversationID}]
	require.NotNil(t, entry)
	assert.Equal(t, 3, entry.UnreadCount)
	assert.Equal(t, "Bob", entry.LastSenderName)

	// the open job's payload was refreshed on every message
	require.Len(t, jobs.ensured, 3)
	assert.Equal(t, 1, jobs.ensured[0].UnreadCount)
	assert.Equal(t, 3, jobs.ensured[2].UnreadCount)
	assert.Equal(t, "Bob", jobs.ensured[2].SenderName)

	for _, k := range jobs.ensureKey {
		assert.Equal(t, key{recipientID, conversationID}, k)
	}
}

func TestRecordUnread_IndependentKeys(t *testing.T) {
	entries := newFakeEntryRepo()
	jobs := &fakeJobRepo{}
	svc := NewService(entries, jobs, 15*time.Minute)

	recipientID := uuid.New()
	convA := uuid.New()
	convB := uuid.New()

	require.NoError(t, svc.RecordUnread(context.Background(), recipientID, convA, "Alice", ""))
	require.NoError(t, svc.RecordUnread(context.Background(), recipientID, convB, "Alice", ""))

	assert.Equal(t, 1, entries.entries[key{recipientID, convA}].UnreadCount)
	assert.Equal(t, 1, entries.entries[key{recipientID, convB}].UnreadCount)
}

func TestRecordUnread_UpsertError(t *testing.T) {
	entries := newFakeEntryRepo()
	entries.upsertErr = errors.New("db down")
	jobs := &fakeJobRepo{}
	svc := NewService(entries, jobs, 15*time.Minute)

	err := svc.RecordUnread(context.Background(), uuid.New(), uuid.New(), "Alice", "")
	assert.Error(t, err)
	assert.Empty(t, jobs.ensured)
}

func TestClear(t *testing.T) {
	entries := newFakeEntryRepo()
	jobs := &fakeJobRepo{}
	svc := NewService(entries, jobs, 15*time.Minute)

	recipientID := uuid.New()
	conversationID := uuid.New()

	require.NoError(t, svc.RecordUnread(context.Background(), recipientID, conversationID, "Alice", ""))
	require.NoError(t, svc.Clear(context.Background(), recipientID, conversationID))

	assert.Empty(t, entries.entries)
	require.Len(t, jobs.cancelled, 1)
	assert.Equal(t, key{recipientID, conversationID}, jobs.cancelled[0])
}

func TestClear_UnknownKeyIsNoop(t *testing.T) {
	entries := newFakeEntryRepo()
	jobs := &fakeJobRepo{}
	svc := NewService(entries, jobs, 15*time.Minute)

	err := svc.Clear(context.Background(), uuid.New(), uuid.New())
	assert.NoError(t, err)
}
