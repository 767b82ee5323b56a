package redisq

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Config struct {
	URL            string        `mapstructure:"url"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	MaxDeadLetters int64         `mapstructure:"max_dead_letters"`
}

// Store is the queue backing store: per-channel work lists, the scheduled and
// retry sorted sets, the priority index, the dead-letter list and the
// delivery counters. Every mutation is a single-key atomic operation.
type Store struct {
	rdb            *redis.Client
	maxDeadLetters int64
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.DialTimeout > 0 {
		opt.DialTimeout = cfg.DialTimeout
	}
	client := redis.NewClient(opt)

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(hctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	maxDL := cfg.MaxDeadLetters
	if maxDL <= 0 {
		maxDL = 1000
	}
	return &Store{rdb: client, maxDeadLetters: maxDL}, nil
}

func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
