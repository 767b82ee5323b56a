package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NordCoder/Courier/internal/domain/event"
)

var evNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeBus struct {
	published []*event.Event
	err       error
}

func (f *fakeBus) Publish(_ context.Context, e *event.Event) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, e)
	return nil
}

type fakeCounters struct {
	total, daily int64
	lastType     string
	lastDay      time.Time
	err          error
}

func (f *fakeCounters) IncrDelivered(context.Context, string, time.Time) error { return nil }

func (f *fakeCounters) DeliveredCounts(_ context.Context, eventType string, day time.Time) (int64, int64, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.lastType = eventType
	f.lastDay = day
	return f.total, f.daily, nil
}

func newTestUsecase() (*Usecase, *fakeBus, *fakeCounters) {
	bus := &fakeBus{}
	counters := &fakeCounters{}
	return New(bus, counters, func() time.Time { return evNow }), bus, counters
}

func TestPublishStampsMissingTimestamp(t *testing.T) {
	uc, bus, _ := newTestUsecase()

	e := &event.Event{Type: "order.shipped", UserID: "u1"}
	require.NoError(t, uc.Publish(context.Background(), e))

	require.Len(t, bus.published, 1)
	assert.True(t, bus.published[0].Timestamp.Equal(evNow))
	assert.NotNil(t, bus.published[0].Data)
}

func TestPublishKeepsCallerTimestamp(t *testing.T) {
	uc, bus, _ := newTestUsecase()

	ts := evNow.Add(-time.Hour)
	e := &event.Event{Type: "order.shipped", UserID: "u1", Timestamp: ts}
	require.NoError(t, uc.Publish(context.Background(), e))
	assert.True(t, bus.published[0].Timestamp.Equal(ts))
}

func TestPublishRejectsIncompleteEvent(t *testing.T) {
	uc, bus, _ := newTestUsecase()

	for _, e := range []*event.Event{
		{UserID: "u1"},
		{Type: "order.shipped"},
		{Type: "  ", UserID: "u1"},
	} {
		err := uc.Publish(context.Background(), e)
		require.ErrorIs(t, err, ErrInvalidEvent)
	}
	assert.Empty(t, bus.published)
}

func TestPublishWrapsBusError(t *testing.T) {
	uc, bus, _ := newTestUsecase()
	boom := errors.New("broker down")
	bus.err = boom

	err := uc.Publish(context.Background(), &event.Event{Type: "t", UserID: "u"})
	require.ErrorIs(t, err, boom)
}

func TestStatsMapsCounterValues(t *testing.T) {
	uc, _, counters := newTestUsecase()
	counters.total = 120
	counters.daily = 7

	s, err := uc.Stats(context.Background(), "order.shipped", evNow)
	require.NoError(t, err)

	assert.Equal(t, "order.shipped", s.EventType)
	assert.Equal(t, "2025-06-01", s.Date)
	assert.Equal(t, int64(7), s.Daily)
	assert.Equal(t, int64(120), s.Total)
	assert.Equal(t, "order.shipped", counters.lastType)
	assert.True(t, counters.lastDay.Equal(evNow))
}

func TestStatsSurfacesCounterError(t *testing.T) {
	uc, _, counters := newTestUsecase()
	boom := errors.New("redis gone")
	counters.err = boom

	_, err := uc.Stats(context.Background(), "order.shipped", evNow)
	require.ErrorIs(t, err, boom)
}
