package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

const (
	keyChannelPrefix = "notifications:"
	keyScheduled     = "notifications:scheduled"
	keyRetry         = "notifications:retry"
	keyPriority      = "notifications:priority"
	keyJobs          = "notifications:jobs"
)

var (
	_ queue.Manager  = (*Store)(nil)
	_ queue.Promoter = (*Store)(nil)
)

func channelKey(ch notification.Channel) string { return keyChannelPrefix + string(ch) }

func setKey(set queue.Set) string {
	if set == queue.SetRetry {
		return keyRetry
	}
	return keyScheduled
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, queue.ErrUnavailable, err)
}

// EnqueueImmediate pushes the job onto its channel list. The job payload is
// mirrored in a side hash keyed by notification id so Cancel can remove the
// exact list element without scanning, and the id is scored into the global
// priority index.
func (s *Store) EnqueueImmediate(ctx context.Context, n *notification.Notification) error {
	job := queue.JobFrom(n)
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	id := n.ID.String()

	// side map first: once the job is on the list a worker may pop it and
	// clean the hash entry right away
	if err := s.rdb.HSet(ctx, keyJobs, id, raw).Err(); err != nil {
		return unavailable("index job", err)
	}
	if err := s.rdb.LPush(ctx, channelKey(n.Channel), raw).Err(); err != nil {
		return unavailable("push job", err)
	}
	if err := s.rdb.ZAdd(ctx, keyPriority, redis.Z{Score: float64(n.Priority.Score()), Member: id}).Err(); err != nil {
		return unavailable("index priority", err)
	}
	return nil
}

func (s *Store) EnqueueScheduled(ctx context.Context, n *notification.Notification, at time.Time) error {
	if !at.After(time.Now()) {
		return s.EnqueueImmediate(ctx, n)
	}
	z := redis.Z{Score: float64(at.UnixMilli()), Member: n.ID.String()}
	if err := s.rdb.ZAdd(ctx, keyScheduled, z).Err(); err != nil {
		return unavailable("schedule job", err)
	}
	return nil
}

func (s *Store) EnqueueRetry(ctx context.Context, n *notification.Notification, delay time.Duration) error {
	due := time.Now().Add(delay)
	z := redis.Z{Score: float64(due.UnixMilli()), Member: n.ID.String()}
	if err := s.rdb.ZAdd(ctx, keyRetry, z).Err(); err != nil {
		return unavailable("schedule retry", err)
	}
	return nil
}

// Cancel removes every queued trace of the notification. A job already
// claimed by a worker is out of reach; the store status is the real guard.
func (s *Store) Cancel(ctx context.Context, id uuid.UUID) error {
	member := id.String()
	for _, key := range []string{keyScheduled, keyRetry, keyPriority} {
		if err := s.rdb.ZRem(ctx, key, member).Err(); err != nil {
			return unavailable("cancel "+key, err)
		}
	}

	raw, err := s.rdb.HGet(ctx, keyJobs, member).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return unavailable("lookup job", err)
	}
	var job queue.Job
	if err := json.Unmarshal([]byte(raw), &job); err == nil {
		if err := s.rdb.LRem(ctx, channelKey(job.Channel), 0, raw).Err(); err != nil {
			return unavailable("remove job", err)
		}
	}
	if err := s.rdb.HDel(ctx, keyJobs, member).Err(); err != nil {
		return unavailable("drop job index", err)
	}
	return nil
}

// Dequeue blocks up to block for the next job across the given channels.
// Returns (nil, nil) when the wait times out empty.
func (s *Store) Dequeue(ctx context.Context, channels []notification.Channel, block time.Duration) (*queue.Job, error) {
	keys := make([]string, 0, len(channels))
	for _, ch := range channels {
		keys = append(keys, channelKey(ch))
	}

	res, err := s.rdb.BRPop(ctx, block, keys...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("pop job", err)
	}
	// res = [key, payload]
	var job queue.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	member := job.NotificationID.String()
	if err := s.rdb.HDel(ctx, keyJobs, member).Err(); err != nil {
		return nil, unavailable("drop job index", err)
	}
	if err := s.rdb.ZRem(ctx, keyPriority, member).Err(); err != nil {
		return nil, unavailable("drop priority index", err)
	}
	return &job, nil
}

// PopDue claims up to limit due entries from the scheduled or retry set. The
// claim is the conditional ZREM: with concurrent sweeps, only the caller
// whose delete removed the member wins it.
func (s *Store) PopDue(ctx context.Context, set queue.Set, now time.Time, limit int64) ([]uuid.UUID, error) {
	key := setKey(set)
	members, err := s.rdb.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, unavailable("range due", err)
	}

	claimed := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		removed, err := s.rdb.ZRem(ctx, key, m).Result()
		if err != nil {
			return claimed, unavailable("claim due", err)
		}
		if removed == 0 {
			continue // another sweep won this one
		}
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		claimed = append(claimed, id)
	}
	return claimed, nil
}

func (s *Store) Requeue(ctx context.Context, set queue.Set, id uuid.UUID, at time.Time) error {
	z := redis.Z{Score: float64(at.UnixMilli()), Member: id.String()}
	if err := s.rdb.ZAdd(ctx, setKey(set), z).Err(); err != nil {
		return unavailable("requeue", err)
	}
	return nil
}
