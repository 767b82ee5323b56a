package notifications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

func newTestRouter() (http.Handler, *fakeRepo, *fakeQueue) {
	repo := newFakeRepo()
	attempts := &fakeAttempts{}
	q := &fakeQueue{}
	uc := New(repo, attempts, q, zap.NewNop(), func() time.Time { return gwNow })
	return NewHTTP(uc, zap.NewNop()).Handle(), repo, q
}

func doJSON(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHTTPCreateReturnsCreated(t *testing.T) {
	h, _, q := newTestRouter()

	rec := doJSON(t, h, http.MethodPost, "/", `{
		"user_id": "u1",
		"channel": "email",
		"recipient": "a@b.com",
		"subject": "Hi",
		"message": "Hello there"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var n notification.Notification
	decodeBody(t, rec, &n)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, notification.StatusPending, n.Status)
	assert.Equal(t, notification.PriorityMedium, n.Priority)
	assert.Equal(t, []uuid.UUID{n.ID}, q.immediate)
}

func TestHTTPCreateRejectsBadJSON(t *testing.T) {
	h, repo, _ := newTestRouter()

	rec := doJSON(t, h, http.MethodPost, "/", `{"user_id":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid request body", body["error"])
	assert.Empty(t, repo.created)
}

func TestHTTPCreateValidationError(t *testing.T) {
	h, _, _ := newTestRouter()

	rec := doJSON(t, h, http.MethodPost, "/", `{"channel": "email", "recipient": "a@b.com", "message": "m"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "user_id")
}

func TestHTTPScheduleRequiresTimestamp(t *testing.T) {
	h, _, _ := newTestRouter()

	rec := doJSON(t, h, http.MethodPost, "/schedule", `{
		"user_id": "u1",
		"channel": "email",
		"recipient": "a@b.com",
		"message": "m"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "scheduled_at is required", body["error"])
}

func TestHTTPScheduleParksFutureRow(t *testing.T) {
	h, _, q := newTestRouter()

	rec := doJSON(t, h, http.MethodPost, "/schedule", `{
		"user_id": "u1",
		"channel": "sms",
		"recipient": "+15550001111",
		"message": "m",
		"scheduled_at": "2025-06-01T13:00:00Z"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var n notification.Notification
	decodeBody(t, rec, &n)
	assert.Equal(t, notification.StatusScheduled, n.Status)
	require.Len(t, q.scheduled, 1)
	assert.Empty(t, q.immediate)
}

func TestHTTPGetUnknownIDIsNotFound(t *testing.T) {
	h, _, _ := newTestRouter()

	rec := doJSON(t, h, http.MethodGet, "/"+uuid.NewString(), "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPRejectsMalformedID(t *testing.T) {
	h, _, _ := newTestRouter()

	rec := doJSON(t, h, http.MethodGet, "/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "invalid notification id", body["error"])
}

func TestHTTPCancelConflictOnSent(t *testing.T) {
	h, repo, _ := newTestRouter()
	id := uuid.New()
	repo.byID[id] = &notification.Notification{ID: id, Status: notification.StatusSent}

	rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/cancel", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Contains(t, body["error"], "cancelled")
}

func TestHTTPResendFailedNotification(t *testing.T) {
	h, repo, q := newTestRouter()
	id := uuid.New()
	repo.byID[id] = &notification.Notification{ID: id, Status: notification.StatusFailed, RetryCount: 2}

	rec := doJSON(t, h, http.MethodPost, "/"+id.String()+"/resend", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var n notification.Notification
	decodeBody(t, rec, &n)
	assert.Equal(t, notification.StatusPending, n.Status)
	assert.Equal(t, 2, n.RetryCount)
	assert.Equal(t, []uuid.UUID{id}, q.immediate)
}

func TestHTTPListReturnsEmptyArray(t *testing.T) {
	h, _, _ := newTestRouter()

	rec := doJSON(t, h, http.MethodGet, "/?user_id=u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"items":[]`)

	var resp ListResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, 1, resp.Page)
	assert.Equal(t, int64(0), resp.Total)
}

func TestHTTPAttemptsList(t *testing.T) {
	h, repo, _ := newTestRouter()
	id := uuid.New()
	repo.byID[id] = &notification.Notification{ID: id, Status: notification.StatusSent}

	rec := doJSON(t, h, http.MethodGet, "/"+id.String()+"/attempts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHTTPQueueOutageMapsToServiceUnavailable(t *testing.T) {
	h, _, q := newTestRouter()
	q.enqueueErr = queue.ErrUnavailable

	rec := doJSON(t, h, http.MethodPost, "/", `{
		"user_id": "u1",
		"channel": "email",
		"recipient": "a@b.com",
		"message": "m"
	}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
