package dispatch_worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

// Dequeuer is the worker-facing side of the queue store.
type Dequeuer interface {
	Dequeue(ctx context.Context, channels []notification.Channel, block time.Duration) (*queue.Job, error)
}

type Config struct {
	Concurrency  int
	BlockTimeout time.Duration
}

type Runner struct {
	log      *zap.Logger
	q        Dequeuer
	h        *Handler
	channels []notification.Channel
	cfg      Config

	mDequeued prometheus.Counter
	mSent     prometheus.Counter
	mRetried  prometheus.Counter
	mFailed   prometheus.Counter
	mSkipped  prometheus.Counter
	mErrors   prometheus.Counter
	mDuration prometheus.Histogram
}

func NewRunner(log *zap.Logger, q Dequeuer, h *Handler, channels []notification.Channel, cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	return &Runner{
		log:      log,
		q:        q,
		h:        h,
		channels: channels,
		cfg:      cfg,
		mDequeued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_jobs_dequeued_total", Help: "Jobs pulled from the channel lists",
		}),
		mSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_sent_total", Help: "Notifications delivered",
		}),
		mRetried: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_retried_total", Help: "Deliveries re-enqueued for retry",
		}),
		mFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_failed_total", Help: "Deliveries failed terminally",
		}),
		mSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_skipped_total", Help: "Jobs skipped by the idempotency guard",
		}),
		mErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_errors_total", Help: "Infrastructure errors in the worker loop",
		}),
		mDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_handle_duration_seconds",
			Help:    "Per-job handling time",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Run drains the channel lists with cfg.Concurrency goroutines until ctx is
// cancelled. Per-job failures never stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("dispatch workers starting",
		zap.Int("concurrency", r.cfg.Concurrency),
		zap.Int("channels", len(r.channels)))

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			r.loop(ctx, id)
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

func (r *Runner) loop(ctx context.Context, id int) {
	log := r.log.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := r.q.Dequeue(ctx, r.channels, r.cfg.BlockTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.mErrors.Inc()
			log.Warn("dequeue", zap.Error(err))
			// Back off so a dead backend is not hammered in a tight loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		r.mDequeued.Inc()
		start := time.Now()
		res, err := r.h.HandleJob(ctx, job)
		r.mDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			r.mErrors.Inc()
			log.Warn("handle job",
				zap.String("notification_id", job.NotificationID.String()),
				zap.String("channel", string(job.Channel)),
				zap.Error(err))
			continue
		}
		switch res {
		case ResultSent:
			r.mSent.Inc()
		case ResultRetried:
			r.mRetried.Inc()
		case ResultFailed:
			r.mFailed.Inc()
		default:
			r.mSkipped.Inc()
		}
	}
}
