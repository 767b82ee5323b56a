package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NordCoder/Courier/internal/domain/event"
)

var ErrInvalidEvent = errors.New("event must carry a type and a userId")

type Stats struct {
	EventType string `json:"event_type"`
	Date      string `json:"date"`
	Daily     int64  `json:"daily"`
	Total     int64  `json:"total"`
}

type Usecase struct {
	bus      event.Publisher
	counters event.Counters
	clk      func() time.Time
}

func New(bus event.Publisher, counters event.Counters, clk func() time.Time) *Usecase {
	if clk == nil {
		clk = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{bus: bus, counters: counters, clk: clk}
}

// Publish puts an event on the bus for the subscriber to fan out. A missing
// timestamp is stamped here so consumers can rely on it.
func (u *Usecase) Publish(ctx context.Context, e *event.Event) error {
	if strings.TrimSpace(e.Type) == "" || strings.TrimSpace(e.UserID) == "" {
		return ErrInvalidEvent
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = u.clk()
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	if err := u.bus.Publish(ctx, e); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (u *Usecase) Stats(ctx context.Context, eventType string, day time.Time) (*Stats, error) {
	total, daily, err := u.counters.DeliveredCounts(ctx, eventType, day)
	if err != nil {
		return nil, fmt.Errorf("delivered counts: %w", err)
	}
	return &Stats{
		EventType: eventType,
		Date:      day.UTC().Format("2006-01-02"),
		Daily:     daily,
		Total:     total,
	}, nil
}
