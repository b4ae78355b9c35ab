package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/bangbuy/notification-service/internal/config"
	"github.com/bangbuy/notification-service/internal/model"
	"github.com/bangbuy/notification-service/internal/repository/job"
)

func TestMain(m *testing.M) {
	zlog.Init()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fakeIngest struct {
	events []model.MessageEvent
	err    error
}

func (f *fakeIngest) ProcessMessage(_ context.Context, _ retry.Strategy, ev model.MessageEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeDigest struct {
	cleared int
	err     error
}

func (f *fakeDigest) Clear(_ context.Context, _, _ uuid.UUID) error {
	f.cleared++
	return f.err
}

type fakeDelivery struct {
	status model.JobStatus
	err    error
}

func (f *fakeDelivery) Status(_ context.Context, _ retry.Strategy, _ uuid.UUID) (model.JobStatus, error) {
	return f.status, f.err
}

func setup() (*Handler, *fakeIngest, *fakeDigest, *fakeDelivery) {
	ingest := &fakeIngest{}
	digest := &fakeDigest{}
	delivery := &fakeDelivery{status: model.StatusPending}
	h := NewHandler(ingest, digest, delivery, validator.New(), &config.Config{})
	return h, ingest, digest, delivery
}

func doRequest(h func(c *gin.Context), method, target, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	h(c)
	return w
}

func TestMessage_Accepted(t *testing.T) {
	h, ingest, _, _ := setup()

	messageID := uuid.New()
	conversationID := uuid.New()
	body := `{
		"message_id": "` + messageID.String() + `",
		"conversation_id": "` + conversationID.String() + `",
		"sender_id": "` + uuid.NewString() + `",
		"receiver_id": "` + uuid.NewString() + `",
		"sender_name": "Alice",
		"content": "is this still available?",
		"first_in_conversation": true
	}`

	w := doRequest(h.Message, http.MethodPost, "/api/notify/message", body)

	assert.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, ingest.events, 1)
	assert.Equal(t, messageID, ingest.events[0].MessageID)
	assert.Equal(t, conversationID, ingest.events[0].ConversationID)
	assert.True(t, ingest.events[0].FirstInConversation)
}

func TestMessage_InvalidBody(t *testing.T) {
	h, ingest, _, _ := setup()

	w := doRequest(h.Message, http.MethodPost, "/api/notify/message", "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ingest.events)
}

func TestMessage_ValidationError(t *testing.T) {
	h, ingest, _, _ := setup()

	// receiver_id is not a UUID and sender_name is missing
	body := `{
		"message_id": "` + uuid.NewString() + `",
		"conversation_id": "` + uuid.NewString() + `",
		"sender_id": "` + uuid.NewString() + `",
		"receiver_id": "not-a-uuid",
		"content": "hello"
	}`

	w := doRequest(h.Message, http.MethodPost, "/api/notify/message", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ingest.events)
}

func TestMessage_IngestErrorStillAccepted(t *testing.T) {
	h, ingest, _, _ := setup()
	ingest.err = errors.New("db down")

	body := `{
		"message_id": "` + uuid.NewString() + `",
		"conversation_id": "` + uuid.NewString() + `",
		"sender_id": "` + uuid.NewString() + `",
		"receiver_id": "` + uuid.NewString() + `",
		"sender_name": "Alice",
		"content": "hello"
	}`

	w := doRequest(h.Message, http.MethodPost, "/api/notify/message", body)

	// a notification problem must never fail message creation
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRead_OK(t *testing.T) {
	h, _, digest, _ := setup()

	body := `{
		"recipient_id": "` + uuid.NewString() + `",
		"conversation_id": "` + uuid.NewString() + `"
	}`

	w := doRequest(h.Read, http.MethodPost, "/api/notify/read", body)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, digest.cleared)
}

func TestRead_ValidationError(t *testing.T) {
	h, _, digest, _ := setup()

	w := doRequest(h.Read, http.MethodPost, "/api/notify/read", `{"recipient_id": "nope"}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, digest.cleared)
}

func TestRead_ClearError(t *testing.T) {
	h, _, digest, _ := setup()
	digest.err = errors.New("db down")

	body := `{
		"recipient_id": "` + uuid.NewString() + `",
		"conversation_id": "` + uuid.NewString() + `"
	}`

	w := doRequest(h.Read, http.MethodPost, "/api/notify/read", body)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func statusRequest(h *Handler, id string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/notify/jobs/"+id, nil)
	c.Params = gin.Params{{Key: "id", Value: id}}
	h.JobStatus(c)
	return w
}

func TestJobStatus_OK(t *testing.T) {
	h, _, _, delivery := setup()
	delivery.status = model.StatusSent

	w := statusRequest(h, uuid.NewString())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sent")
}

func TestJobStatus_InvalidID(t *testing.T) {
	h, _, _, _ := setup()

	w := statusRequest(h, "not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobStatus_NotFound(t *testing.T) {
	h, _, _, delivery := setup()
	delivery.err = job.ErrJobNotFound

	w := statusRequest(h, uuid.NewString())

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobStatus_InfraError(t *testing.T) {
	h, _, _, delivery := setup()
	delivery.err = errors.New("db down")

	w := statusRequest(h, uuid.NewString())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
