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

	config "github.com/NordCoder/Courier/internal/config/event-subscriber"
	"github.com/NordCoder/Courier/internal/obs"
	"github.com/NordCoder/Courier/internal/repository/kafka"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
	subscriber "github.com/NordCoder/Courier/internal/services/event-subscriber"
	subrepo "github.com/NordCoder/Courier/internal/services/event-subscriber/repo"
)

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func wire(db *pg.DB, store *redisq.Store, l *zap.Logger) *subscriber.Handler {
	return &subscriber.Handler{
		Subs:      subrepo.Subscriptions{R: pg.NewSubscriptionRepo(db)},
		Prefs:     subrepo.Preferences{R: pg.NewPreferenceRepo(db)},
		Templates: subrepo.Templates{R: pg.NewTemplateRepo(db)},
		Notifs:    subrepo.Notifications{R: pg.NewNotificationRepo(db)},
		Queue:     subrepo.Enqueuer{M: store},
		Counters:  subrepo.Counters{C: store},
		Clock:     systemClock{},
		Log:       l,
	}
}

func main() {
	// init
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/event-subscriber.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	// logger
	l, err := obs.NewLogger(obs.LogConfig{Level: cfg.LogLevel, App: "courier/event-subscriber"})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = l.Sync() }()
	l.Info("starting event-subscriber",
		zap.Strings("brokers", cfg.In.Brokers),
		zap.Strings("topics", cfg.In.Topics),
		zap.String("group_id", cfg.In.GroupID),
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

	// kafka
	cons := kafka.BootstrapConsumer(ctx, cfg.In.AsConsumerConfig(), l)
	defer func() { _ = cons.Close() }()

	// metrics
	ms := obs.BootstrapMetricsServer(cfg.Server.MetricsAddr, func(ctx context.Context) error {
		hctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			return err
		}
		return store.Ping(hctx)
	}, l)

	// wiring
	uc := wire(db, store, l)
	ctrl := subscriber.NewController(l, cons, uc, subrepo.DeadLetters{D: store}, systemClock{})

	// run
	errCh := make(chan error, 1)
	go func() { errCh <- ctrl.Run(ctx) }()

	l.Info("event-subscriber started")

	// loop
	select {
	case <-ctx.Done():
	case err = <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			l.Error("controller error", zap.Error(err))
		}
	}

	// graceful shutdown
	shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = ms.Shutdown(shCtx)
	l.Info("bye")
}
