package notification

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelChat    Channel = "chat"
	ChannelSMS     Channel = "sms"
	ChannelWebhook Channel = "webhook"
	ChannelPush    Channel = "push"
)

func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelChat, ChannelSMS, ChannelWebhook, ChannelPush}
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelSMS, ChannelWebhook, ChannelPush:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Score maps a priority to its rank in the queue priority index.
func (p Priority) Score() int {
	switch p {
	case PriorityUrgent:
		return 100
	case PriorityHigh:
		return 75
	case PriorityMedium:
		return 50
	default:
		return 25
	}
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusSent, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further delivery attempt may happen from s.
// failed is not terminal here: an explicit resend reopens it.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusCancelled
}

const DefaultMaxRetries = 3

type Notification struct {
	ID          uuid.UUID      `json:"id"`
	UserID      string         `json:"user_id"`
	Channel     Channel        `json:"channel"`
	Recipient   string         `json:"recipient"`
	Subject     string         `json:"subject"`
	Message     string         `json:"message"`
	HTMLMessage string         `json:"html_message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Priority    Priority       `json:"priority"`
	Status      Status         `json:"status"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
	LastError   string         `json:"last_error,omitempty"`
	ScheduledAt *time.Time     `json:"scheduled_at,omitempty"`
	SentAt      *time.Time     `json:"sent_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type Attempt struct {
	ID             int64          `json:"id"`
	NotificationID uuid.UUID      `json:"notification_id"`
	Number         int            `json:"number"`
	Status         Status         `json:"status"`
	Error          string         `json:"error,omitempty"`
	Response       map[string]any `json:"response,omitempty"`
	DurationMS     int64          `json:"duration_ms"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Clock interface {
	Now() time.Time
}
