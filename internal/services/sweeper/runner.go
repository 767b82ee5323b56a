package sweeper

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	config "github.com/NordCoder/Courier/internal/config/sweeper"
)

type Runner struct {
	Log *zap.Logger
	UC  *Usecase
	Cfg *config.SweepCfg

	mClaimed  prometheus.Counter
	mPromoted prometheus.Counter
	mErr      prometheus.Counter
	mLoopDur  prometheus.Histogram
}

func New(log *zap.Logger, uc *Usecase, cfg *config.SweepCfg) *Runner {
	return &Runner{
		Log: log,
		UC:  uc,
		Cfg: cfg,
		mClaimed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_entries_claimed_total", Help: "Due entries claimed from the scheduled/retry sets",
		}),
		mPromoted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_entries_promoted_total", Help: "Entries pushed onto the immediate queues",
		}),
		mErr: promauto.NewCounter(prometheus.CounterOpts{
			Name: "sweeper_errors_total", Help: "Errors in the sweep loop",
		}),
		mLoopDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "sweeper_loop_duration_seconds", Help: "Sweep tick duration",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	claimed, promoted, errs, err := r.UC.Tick(ctx, r.Cfg.BatchLimit)
	if err != nil {
		r.Log.Warn("sweep tick", zap.Error(err))
	}
	if claimed > 0 || errs > 0 {
		r.mClaimed.Add(float64(claimed))
		r.mPromoted.Add(float64(promoted))
		if errs > 0 {
			r.mErr.Add(float64(errs))
		}
		r.Log.Debug("swept batch",
			zap.Int("claimed", claimed), zap.Int("promoted", promoted), zap.Int("errors", errs))
	}
	r.mLoopDur.Observe(time.Since(start).Seconds())
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Cfg.Tick)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}
