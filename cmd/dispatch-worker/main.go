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

	config "github.com/NordCoder/Courier/internal/config/dispatch-worker"
	"github.com/NordCoder/Courier/internal/obs"
	"github.com/NordCoder/Courier/internal/providers"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
	worker "github.com/NordCoder/Courier/internal/services/dispatch-worker"
	workerrepo "github.com/NordCoder/Courier/internal/services/dispatch-worker/repo"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wire(cfg *config.Config, db *pg.DB, store *redisq.Store, reg *providers.Registry, l *zap.Logger) *worker.Runner {
	notifs := pg.NewNotificationRepo(db)
	attempts := pg.NewAttemptRepo(db)
	transactor := pg.NewTransactor(db, l)

	h := &worker.Handler{
		Notifications: workerrepo.Notifications{R: notifs},
		Attempts:      workerrepo.Attempts{R: attempts},
		Retries:       workerrepo.Retries{M: store},
		Providers:     reg,
		Tx:            transactor,
		Clock:         systemClock{},
		Log:           l,
		SendTimeout:   cfg.Providers.SendTimeout,
	}

	return worker.NewRunner(l, store, h, reg.Available(), worker.Config{
		Concurrency:  cfg.Worker.Concurrency,
		BlockTimeout: cfg.Worker.BlockTimeout,
	})
}

func main() {
	// init
	root, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/dispatch-worker.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, App: "courier/dispatch-worker"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()

	// otel
	otelCloser, err := obs.SetupOTel(root, cfg.OTEL.AsOTELConfig())
	if err != nil {
		l.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelCloser.Shutdown(context.Background()) }()

	// db
	db, err := pg.New(root, cfg.DB)
	if err != nil {
		l.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// redis
	store, err := redisq.New(root, cfg.Redis)
	if err != nil {
		l.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// providers
	reg := providers.NewRegistry(cfg.Providers, l)
	channels := reg.Available()
	if len(channels) == 0 {
		l.Fatal("no provider passed config validation; nothing to drain")
	}

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			return err
		}
		return store.Ping(hctx)
	}, l)

	// start
	runner := wire(cfg, db, store, reg, l)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(root) }()

	l.Info("dispatch-worker started",
		zap.Any("channels", channels),
		zap.Int("concurrency", cfg.Worker.Concurrency),
	)

	// loop
	select {
	case <-root.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("runner error", zap.Error(err))
		}
	}

	// graceful metrics server shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
