package redisq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Courier/internal/domain/event"
)

const dailyCounterTTL = 48 * time.Hour

var _ event.Counters = (*Store)(nil)

func counterTotalKey(eventType string) string {
	return fmt.Sprintf("stats:events:%s:total", eventType)
}

func counterDailyKey(eventType string, day time.Time) string {
	return fmt.Sprintf("stats:events:%s:daily:%s", eventType, day.UTC().Format("2006-01-02"))
}

func (s *Store) IncrDelivered(ctx context.Context, eventType string, at time.Time) error {
	if err := s.rdb.Incr(ctx, counterTotalKey(eventType)).Err(); err != nil {
		return unavailable("incr total", err)
	}
	daily := counterDailyKey(eventType, at)
	if err := s.rdb.Incr(ctx, daily).Err(); err != nil {
		return unavailable("incr daily", err)
	}
	if err := s.rdb.Expire(ctx, daily, dailyCounterTTL).Err(); err != nil {
		return unavailable("expire daily", err)
	}
	return nil
}

func (s *Store) DeliveredCounts(ctx context.Context, eventType string, day time.Time) (total, daily int64, err error) {
	total, err = s.getCount(ctx, counterTotalKey(eventType))
	if err != nil {
		return 0, 0, err
	}
	daily, err = s.getCount(ctx, counterDailyKey(eventType, day))
	if err != nil {
		return 0, 0, err
	}
	return total, daily, nil
}

func (s *Store) getCount(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, unavailable("get counter", err)
	}
	return n, nil
}
