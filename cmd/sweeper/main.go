package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Courier/internal/config/sweeper"
	"github.com/NordCoder/Courier/internal/obs"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
	"github.com/NordCoder/Courier/internal/services/sweeper"
	sweeprepo "github.com/NordCoder/Courier/internal/services/sweeper/repo"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/sweeper.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, App: "courier/sweeper"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting sweeper",
		zap.Duration("tick", cfg.Sweep.Tick),
		zap.Int64("batch_limit", cfg.Sweep.BatchLimit),
		zap.String("metrics_addr", cfg.Sweep.MetricsAddr),
	)

	// otel
	otelCloser, err := obs.SetupOTel(ctx, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(ctx, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// redis
	store, err := redisq.New(ctx, cfg.Redis)
	if err != nil {
		l.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Sweep.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			return err
		}
		return store.Ping(hctx)
	}, l)

	// wiring
	notifRepo := pg.NewNotificationRepo(db)
	uc := sweeper.NewUC(
		sweeprepo.Notifications{R: notifRepo},
		sweeprepo.Queue{M: store, P: store},
		systemClock{},
		l,
	)
	runner := sweeper.New(l, uc, &cfg.Sweep)

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(ctx) }()

	l.Info("sweeper started")

	// loop
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
