package sweeper

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
	"github.com/NordCoder/Courier/internal/services/sweeper/repo"
)

type fakeNotifs struct {
	byID    map[uuid.UUID]*notification.Notification
	updates []notification.Notification
}

func (f *fakeNotifs) Create(context.Context, *notification.Notification) error { return nil }

func (f *fakeNotifs) GetByID(_ context.Context, id uuid.UUID) (*notification.Notification, error) {
	n, ok := f.byID[id]
	if !ok {
		return nil, notification.ErrNotFound
	}
	return n, nil
}

func (f *fakeNotifs) Update(_ context.Context, n *notification.Notification) error {
	f.updates = append(f.updates, *n)
	return nil
}

func (f *fakeNotifs) ListByUser(context.Context, notification.Filter) ([]*notification.Notification, int64, error) {
	return nil, 0, nil
}

type requeueCall struct {
	set queue.Set
	id  uuid.UUID
}

type fakeStore struct {
	due        map[queue.Set][]uuid.UUID
	enqueued   []uuid.UUID
	requeued   []requeueCall
	enqueueErr error
	popErr     error
}

func (f *fakeStore) EnqueueImmediate(_ context.Context, n *notification.Notification) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.enqueued = append(f.enqueued, n.ID)
	return nil
}

func (f *fakeStore) EnqueueScheduled(context.Context, *notification.Notification, time.Time) error {
	return nil
}

func (f *fakeStore) EnqueueRetry(context.Context, *notification.Notification, time.Duration) error {
	return nil
}

func (f *fakeStore) Cancel(context.Context, uuid.UUID) error { return nil }

func (f *fakeStore) Dequeue(context.Context, []notification.Channel, time.Duration) (*queue.Job, error) {
	return nil, nil
}

func (f *fakeStore) PopDue(_ context.Context, set queue.Set, _ time.Time, _ int64) ([]uuid.UUID, error) {
	if f.popErr != nil {
		return nil, f.popErr
	}
	ids := f.due[set]
	f.due[set] = nil
	return ids, nil
}

func (f *fakeStore) Requeue(_ context.Context, set queue.Set, id uuid.UUID, _ time.Time) error {
	f.requeued = append(f.requeued, requeueCall{set: set, id: id})
	return nil
}

type tickClock struct{ t time.Time }

func (c tickClock) Now() time.Time { return c.t }

func newTestUC(notifs *fakeNotifs, store *fakeStore) *Usecase {
	return NewUC(
		repo.Notifications{R: notifs},
		repo.Queue{M: store, P: store},
		tickClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		zap.NewNop(),
	)
}

func scheduledNotification(at time.Time) *notification.Notification {
	return &notification.Notification{
		ID:          uuid.New(),
		UserID:      "u1",
		Channel:     notification.ChannelEmail,
		Recipient:   "a@b.com",
		Message:     "M",
		Priority:    notification.PriorityMedium,
		Status:      notification.StatusScheduled,
		MaxRetries:  3,
		ScheduledAt: &at,
	}
}

func TestTickPromotesScheduled(t *testing.T) {
	n := scheduledNotification(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC))
	notifs := &fakeNotifs{byID: map[uuid.UUID]*notification.Notification{n.ID: n}}
	store := &fakeStore{due: map[queue.Set][]uuid.UUID{queue.SetScheduled: {n.ID}}}
	uc := newTestUC(notifs, store)

	claimed, promoted, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, 1, promoted)
	assert.Zero(t, errs)

	require.Len(t, notifs.updates, 1)
	assert.Equal(t, notification.StatusPending, notifs.updates[0].Status)
	assert.Equal(t, []uuid.UUID{n.ID}, store.enqueued)
	assert.Empty(t, store.requeued)
}

func TestTickPromotesRetryWithoutStatusChange(t *testing.T) {
	n := scheduledNotification(time.Time{})
	n.Status = notification.StatusPending
	n.ScheduledAt = nil
	n.RetryCount = 1
	notifs := &fakeNotifs{byID: map[uuid.UUID]*notification.Notification{n.ID: n}}
	store := &fakeStore{due: map[queue.Set][]uuid.UUID{queue.SetRetry: {n.ID}}}
	uc := newTestUC(notifs, store)

	claimed, promoted, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Equal(t, 1, promoted)
	assert.Zero(t, errs)
	assert.Empty(t, notifs.updates)
	assert.Equal(t, []uuid.UUID{n.ID}, store.enqueued)
}

// A cancelled notification still sitting in the scheduled set must not come
// back to life when its due time passes.
func TestTickDropsTerminalEntries(t *testing.T) {
	for _, st := range []notification.Status{
		notification.StatusSent, notification.StatusCancelled, notification.StatusFailed,
	} {
		t.Run(string(st), func(t *testing.T) {
			n := scheduledNotification(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC))
			n.Status = st
			notifs := &fakeNotifs{byID: map[uuid.UUID]*notification.Notification{n.ID: n}}
			store := &fakeStore{due: map[queue.Set][]uuid.UUID{queue.SetScheduled: {n.ID}}}
			uc := newTestUC(notifs, store)

			claimed, promoted, errs, err := uc.Tick(context.Background(), 100)
			require.NoError(t, err)
			assert.Equal(t, 1, claimed)
			assert.Zero(t, promoted)
			assert.Zero(t, errs)
			assert.Empty(t, notifs.updates)
			assert.Empty(t, store.enqueued)
		})
	}
}

func TestTickDropsMissingNotification(t *testing.T) {
	notifs := &fakeNotifs{byID: map[uuid.UUID]*notification.Notification{}}
	store := &fakeStore{due: map[queue.Set][]uuid.UUID{queue.SetRetry: {uuid.New()}}}
	uc := newTestUC(notifs, store)

	claimed, promoted, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Zero(t, promoted)
	assert.Zero(t, errs)
}

func TestTickRequeuesOnEnqueueFailure(t *testing.T) {
	n := scheduledNotification(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC))
	notifs := &fakeNotifs{byID: map[uuid.UUID]*notification.Notification{n.ID: n}}
	store := &fakeStore{
		due:        map[queue.Set][]uuid.UUID{queue.SetScheduled: {n.ID}},
		enqueueErr: queue.ErrUnavailable,
	}
	uc := newTestUC(notifs, store)

	claimed, promoted, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
	assert.Zero(t, promoted)
	assert.Equal(t, 1, errs)
	require.Len(t, store.requeued, 1)
	assert.Equal(t, queue.SetScheduled, store.requeued[0].set)
	assert.Equal(t, n.ID, store.requeued[0].id)
}

func TestTickEmptySets(t *testing.T) {
	store := &fakeStore{due: map[queue.Set][]uuid.UUID{}}
	uc := newTestUC(&fakeNotifs{byID: map[uuid.UUID]*notification.Notification{}}, store)

	claimed, promoted, errs, err := uc.Tick(context.Background(), 100)
	require.NoError(t, err)
	assert.Zero(t, claimed)
	assert.Zero(t, promoted)
	assert.Zero(t, errs)
}

func TestTickSurfacesPopDueError(t *testing.T) {
	boom := errors.New("redis down")
	store := &fakeStore{popErr: boom}
	uc := newTestUC(&fakeNotifs{byID: map[uuid.UUID]*notification.Notification{}}, store)

	_, _, errs, err := uc.Tick(context.Background(), 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, errs)
}
