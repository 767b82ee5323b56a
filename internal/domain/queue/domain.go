package queue

import (
	"github.com/google/uuid"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

// Job is the ephemeral wire form of a notification inside the queue backing
// store: {jobId, notificationId, channel, priority, attempts, maxAttempts}.
// It is rebuilt from the notification on every enqueue, never persisted.
type Job struct {
	JobID          string               `json:"jobId"`
	NotificationID uuid.UUID            `json:"notificationId"`
	Channel        notification.Channel `json:"channel"`
	Priority       int                  `json:"priority"`
	Attempts       int                  `json:"attempts"`
	MaxAttempts    int                  `json:"maxAttempts"`
}

func JobFrom(n *notification.Notification) Job {
	return Job{
		JobID:          uuid.NewString(),
		NotificationID: n.ID,
		Channel:        n.Channel,
		Priority:       n.Priority.Score(),
		Attempts:       n.RetryCount,
		MaxAttempts:    n.MaxRetries,
	}
}
