package subscription

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

type Subscription struct {
	ID        uuid.UUID            `json:"id"`
	UserID    string               `json:"user_id"`
	EventType string               `json:"event_type"`
	Channel   notification.Channel `json:"channel"`
	Enabled   bool                 `json:"enabled"`
	Filters   map[string]any       `json:"filters,omitempty"`
	Settings  map[string]any       `json:"settings,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Matches evaluates the filter criteria as an exact-match conjunction against
// the event payload: every filter key must be present and equal. An empty
// filter set matches everything.
func (s *Subscription) Matches(payload map[string]any) bool {
	for k, want := range s.Filters {
		got, ok := payload[k]
		if !ok || !reflect.DeepEqual(want, got) {
			return false
		}
	}
	return true
}

// Address returns the delivery address for this subscription, preferring the
// subscription-level override and falling back to the preference settings.
func (s *Subscription) Address(p *Preference) string {
	if addr, ok := s.Settings["address"].(string); ok && addr != "" {
		return addr
	}
	if p != nil {
		if addr, ok := p.Settings["address"].(string); ok && addr != "" {
			return addr
		}
	}
	return ""
}

type Preference struct {
	UserID     string               `json:"user_id"`
	Channel    notification.Channel `json:"channel"`
	Enabled    bool                 `json:"enabled"`
	Frequency  string               `json:"frequency,omitempty"`
	QuietStart string               `json:"quiet_start,omitempty"` // "HH:MM"
	QuietEnd   string               `json:"quiet_end,omitempty"`   // "HH:MM"
	Timezone   string               `json:"timezone,omitempty"`
	Settings   map[string]any       `json:"settings,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

// QuietAt reports whether t falls inside the preference's quiet-hours window,
// evaluated in the preference's timezone. A window with start > end wraps past
// midnight. Missing or unparseable bounds mean no quiet hours.
func (p *Preference) QuietAt(t time.Time) bool {
	start, okS := parseClock(p.QuietStart)
	end, okE := parseClock(p.QuietEnd)
	if !okS || !okE || start == end {
		return false
	}
	loc := time.UTC
	if p.Timezone != "" {
		if l, err := time.LoadLocation(p.Timezone); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	m := local.Hour()*60 + local.Minute()
	if start < end {
		return m >= start && m < end
	}
	// overnight window, e.g. 22:00-06:00
	return m >= start || m < end
}

func parseClock(s string) (int, bool) {
	tt, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return tt.Hour()*60 + tt.Minute(), true
}
