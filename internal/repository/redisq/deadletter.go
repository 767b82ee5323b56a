package redisq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NordCoder/Courier/internal/domain/event"
)

const keyDeadLetter = "notifications:dead_letter"

var _ event.DeadLetters = (*Store)(nil)

// Push prepends the entry and trims the list to the configured cap, evicting
// the oldest entries beyond it.
func (s *Store) Push(ctx context.Context, dl event.DeadLetter) error {
	raw, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	if err := s.rdb.LPush(ctx, keyDeadLetter, raw).Err(); err != nil {
		return unavailable("push dead letter", err)
	}
	if err := s.rdb.LTrim(ctx, keyDeadLetter, 0, s.maxDeadLetters-1).Err(); err != nil {
		return unavailable("trim dead letters", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, limit int64) ([]event.DeadLetter, error) {
	if limit <= 0 || limit > s.maxDeadLetters {
		limit = s.maxDeadLetters
	}
	raws, err := s.rdb.LRange(ctx, keyDeadLetter, 0, limit-1).Result()
	if err != nil {
		return nil, unavailable("list dead letters", err)
	}
	out := make([]event.DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var dl event.DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			continue
		}
		out = append(out, dl)
	}
	return out, nil
}
