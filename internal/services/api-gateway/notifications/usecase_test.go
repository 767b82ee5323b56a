package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

var gwNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	byID      map[uuid.UUID]*notification.Notification
	created   []*notification.Notification
	updates   []notification.Notification
	listItems []*notification.Notification
	listTotal int64
	lastList  notification.Filter
	createErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]*notification.Notification{}}
}

func (f *fakeRepo) Create(_ context.Context, n *notification.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	f.created = append(f.created, n)
	f.byID[n.ID] = n
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*notification.Notification, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeRepo) Update(_ context.Context, n *notification.Notification) error {
	f.updates = append(f.updates, *n)
	f.byID[n.ID] = n
	return nil
}

func (f *fakeRepo) ListByUser(_ context.Context, flt notification.Filter) ([]*notification.Notification, int64, error) {
	f.lastList = flt
	return f.listItems, f.listTotal, nil
}

type fakeAttempts struct {
	rows []*notification.Attempt
}

func (f *fakeAttempts) Insert(_ context.Context, a *notification.Attempt) error {
	f.rows = append(f.rows, a)
	return nil
}

func (f *fakeAttempts) ListByNotification(_ context.Context, _ uuid.UUID, limit int) ([]*notification.Attempt, error) {
	if limit > 0 && limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

type schedCall struct {
	id uuid.UUID
	at time.Time
}

type fakeQueue struct {
	immediate  []uuid.UUID
	scheduled  []schedCall
	cancelled  []uuid.UUID
	enqueueErr error
	cancelErr  error
}

func (f *fakeQueue) EnqueueImmediate(_ context.Context, n *notification.Notification) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.immediate = append(f.immediate, n.ID)
	return nil
}

func (f *fakeQueue) EnqueueScheduled(_ context.Context, n *notification.Notification, at time.Time) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.scheduled = append(f.scheduled, schedCall{id: n.ID, at: at})
	return nil
}

func (f *fakeQueue) EnqueueRetry(context.Context, *notification.Notification, time.Duration) error {
	return nil
}

func (f *fakeQueue) Cancel(_ context.Context, id uuid.UUID) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeQueue) Dequeue(context.Context, []notification.Channel, time.Duration) (*queue.Job, error) {
	return nil, nil
}

func newTestUsecase() (*Usecase, *fakeRepo, *fakeAttempts, *fakeQueue) {
	repo := newFakeRepo()
	attempts := &fakeAttempts{}
	q := &fakeQueue{}
	uc := New(repo, attempts, q, zap.NewNop(), func() time.Time { return gwNow })
	return uc, repo, attempts, q
}

func validCreate() *CreateRequest {
	return &CreateRequest{
		UserID:    "u1",
		Channel:   "email",
		Recipient: "a@b.com",
		Subject:   "Order shipped",
		Message:   "Your order is on its way.",
	}
}

func TestCreateAndEnqueueStoresPending(t *testing.T) {
	uc, repo, _, q := newTestUsecase()

	n, err := uc.CreateAndEnqueue(context.Background(), validCreate())
	require.NoError(t, err)

	require.Len(t, repo.created, 1)
	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.Equal(t, notification.StatusPending, n.Status)
	assert.Equal(t, notification.PriorityMedium, n.Priority)
	assert.Equal(t, notification.DefaultMaxRetries, n.MaxRetries)
	assert.Equal(t, []uuid.UUID{n.ID}, q.immediate)
}

func TestCreateAndEnqueueKeepsExplicitFields(t *testing.T) {
	uc, _, _, _ := newTestUsecase()

	zero := 0
	req := validCreate()
	req.Priority = "urgent"
	req.MaxRetries = &zero
	req.Metadata = map[string]any{"orderId": "o-42"}

	n, err := uc.CreateAndEnqueue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, notification.PriorityUrgent, n.Priority)
	assert.Equal(t, 0, n.MaxRetries)
	assert.Equal(t, "o-42", n.Metadata["orderId"])
}

func TestCreateAndEnqueueValidation(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(*CreateRequest)
		field string
	}{
		{"missing user", func(r *CreateRequest) { r.UserID = " " }, "user_id"},
		{"unknown channel", func(r *CreateRequest) { r.Channel = "fax" }, "channel"},
		{"missing recipient", func(r *CreateRequest) { r.Recipient = "" }, "recipient"},
		{"missing message", func(r *CreateRequest) { r.Message = "" }, "message"},
		{"unknown priority", func(r *CreateRequest) { r.Priority = "asap" }, "priority"},
		{"negative retries", func(r *CreateRequest) { neg := -1; r.MaxRetries = &neg }, "max_retries"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			uc, repo, _, q := newTestUsecase()
			req := validCreate()
			tc.mut(req)

			_, err := uc.CreateAndEnqueue(context.Background(), req)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Empty(t, repo.created)
			assert.Empty(t, q.immediate)
		})
	}
}

func TestScheduleFutureParksRow(t *testing.T) {
	uc, _, _, q := newTestUsecase()

	at := gwNow.Add(time.Hour)
	n, err := uc.Schedule(context.Background(), validCreate(), at)
	require.NoError(t, err)

	assert.Equal(t, notification.StatusScheduled, n.Status)
	require.NotNil(t, n.ScheduledAt)
	assert.True(t, n.ScheduledAt.Equal(at))
	require.Len(t, q.scheduled, 1)
	assert.Equal(t, n.ID, q.scheduled[0].id)
	assert.True(t, q.scheduled[0].at.Equal(at))
	assert.Empty(t, q.immediate)
}

// A schedule request whose due time already passed goes straight to the work
// queue instead of being rejected or parked.
func TestSchedulePastDegradesToImmediate(t *testing.T) {
	uc, _, _, q := newTestUsecase()

	n, err := uc.Schedule(context.Background(), validCreate(), gwNow.Add(-time.Minute))
	require.NoError(t, err)

	assert.Equal(t, notification.StatusPending, n.Status)
	assert.Nil(t, n.ScheduledAt)
	assert.Equal(t, []uuid.UUID{n.ID}, q.immediate)
	assert.Empty(t, q.scheduled)
}

func TestCancelPendingAndScheduled(t *testing.T) {
	for _, st := range []notification.Status{notification.StatusPending, notification.StatusScheduled} {
		t.Run(string(st), func(t *testing.T) {
			uc, repo, _, q := newTestUsecase()
			id := uuid.New()
			repo.byID[id] = &notification.Notification{ID: id, Status: st}

			n, err := uc.Cancel(context.Background(), id)
			require.NoError(t, err)

			assert.Equal(t, notification.StatusCancelled, n.Status)
			require.Len(t, repo.updates, 1)
			assert.Equal(t, notification.StatusCancelled, repo.updates[0].Status)
			assert.Equal(t, []uuid.UUID{id}, q.cancelled)
		})
	}
}

func TestCancelRejectsOtherStates(t *testing.T) {
	for _, st := range []notification.Status{notification.StatusSent, notification.StatusFailed, notification.StatusCancelled} {
		t.Run(string(st), func(t *testing.T) {
			uc, repo, _, _ := newTestUsecase()
			id := uuid.New()
			repo.byID[id] = &notification.Notification{ID: id, Status: st}

			_, err := uc.Cancel(context.Background(), id)
			require.ErrorIs(t, err, ErrNotCancellable)
			assert.Empty(t, repo.updates)
		})
	}
}

// The row flips to cancelled even when the queue cleanup fails; the worker's
// terminal-status guard covers the leftover job.
func TestCancelSurvivesQueueFailure(t *testing.T) {
	uc, repo, _, q := newTestUsecase()
	q.cancelErr = queue.ErrUnavailable
	id := uuid.New()
	repo.byID[id] = &notification.Notification{ID: id, Status: notification.StatusPending}

	n, err := uc.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, notification.StatusCancelled, n.Status)
	require.Len(t, repo.updates, 1)
}

func TestResendReopensFailed(t *testing.T) {
	uc, repo, _, q := newTestUsecase()
	id := uuid.New()
	repo.byID[id] = &notification.Notification{
		ID:         id,
		Status:     notification.StatusFailed,
		RetryCount: 3,
		MaxRetries: 3,
		LastError:  "payment provider 500",
	}

	n, err := uc.Resend(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, notification.StatusPending, n.Status)
	assert.Equal(t, 3, n.RetryCount, "resend keeps the retry history")
	assert.Equal(t, "payment provider 500", n.LastError)
	assert.Equal(t, []uuid.UUID{id}, q.immediate)
}

func TestResendRejectsNonFailed(t *testing.T) {
	for _, st := range []notification.Status{notification.StatusPending, notification.StatusScheduled, notification.StatusSent, notification.StatusCancelled} {
		t.Run(string(st), func(t *testing.T) {
			uc, repo, _, q := newTestUsecase()
			id := uuid.New()
			repo.byID[id] = &notification.Notification{ID: id, Status: st}

			_, err := uc.Resend(context.Background(), id)
			require.ErrorIs(t, err, ErrNotResendable)
			assert.Empty(t, q.immediate)
		})
	}
}

func TestGetPassesThroughNotFound(t *testing.T) {
	uc, _, _, _ := newTestUsecase()
	_, err := uc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, notification.ErrNotFound)
}

func TestListForUserValidatesFilter(t *testing.T) {
	uc, _, _, _ := newTestUsecase()

	_, _, err := uc.ListForUser(context.Background(), notification.Filter{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "user_id", verr.Field)

	_, _, err = uc.ListForUser(context.Background(), notification.Filter{UserID: "u1", Status: "sending"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "status", verr.Field)
}

func TestListForUserForwardsFilter(t *testing.T) {
	uc, repo, _, _ := newTestUsecase()
	repo.listItems = []*notification.Notification{{ID: uuid.New()}}
	repo.listTotal = 7

	items, total, err := uc.ListForUser(context.Background(), notification.Filter{
		UserID: "u1",
		Status: notification.StatusFailed,
		Page:   2,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(7), total)
	assert.Equal(t, "u1", repo.lastList.UserID)
	assert.Equal(t, notification.StatusFailed, repo.lastList.Status)
	assert.Equal(t, 2, repo.lastList.Page)
}

func TestAttemptsRequiresExistingNotification(t *testing.T) {
	uc, repo, attempts, _ := newTestUsecase()

	_, err := uc.Attempts(context.Background(), uuid.New(), 10)
	require.ErrorIs(t, err, notification.ErrNotFound)

	id := uuid.New()
	repo.byID[id] = &notification.Notification{ID: id, Status: notification.StatusSent}
	attempts.rows = []*notification.Attempt{
		{NotificationID: id, Number: 1, Status: notification.StatusFailed},
		{NotificationID: id, Number: 2, Status: notification.StatusSent},
	}

	rows, err := uc.Attempts(context.Background(), id, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, notification.StatusSent, rows[1].Status)
}

func TestCreateAndEnqueueSurfacesQueueError(t *testing.T) {
	uc, repo, _, q := newTestUsecase()
	q.enqueueErr = queue.ErrUnavailable

	_, err := uc.CreateAndEnqueue(context.Background(), validCreate())
	require.ErrorIs(t, err, queue.ErrUnavailable)
	// The row was stored before the enqueue failed.
	require.Len(t, repo.created, 1)
}

func TestCreateAndEnqueueSurfacesRepoError(t *testing.T) {
	uc, repo, _, q := newTestUsecase()
	boom := errors.New("insert failed")
	repo.createErr = boom

	_, err := uc.CreateAndEnqueue(context.Background(), validCreate())
	require.ErrorIs(t, err, boom)
	assert.Empty(t, q.immediate)
}
