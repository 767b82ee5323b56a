package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	config "github.com/NordCoder/Courier/internal/config/api-gateway"
	"github.com/NordCoder/Courier/internal/repository/kafka"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
	"github.com/NordCoder/Courier/internal/services/api-gateway/events"
	"github.com/NordCoder/Courier/internal/services/api-gateway/notifications"
)

func main() {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/api-gateway.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting api-gateway", zap.String("env", cfg.App.Env), zap.String("ver", cfg.App.Version))

	otelShutdown, err := initOTel(rootCtx, cfg)
	if err != nil {
		logger.Fatal("otel init", zap.Error(err))
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := initDB(rootCtx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	store, err := redisq.New(rootCtx, cfg.Redis)
	if err != nil {
		logger.Fatal("redis connect", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic).WithLogger(logger)
	defer func() { _ = producer.Close() }()
	bus := kafka.NewEventBus(producer, logger)

	clk := func() time.Time { return time.Now().UTC() }

	notifUC := notifications.New(pg.NewNotificationRepo(db), pg.NewAttemptRepo(db), store, logger, clk)
	eventsUC := events.New(bus, store, clk)

	httpSrv := buildHTTPServer(cfg, db, store,
		notifications.NewHTTP(notifUC, logger),
		events.NewHTTP(eventsUC, logger),
	)

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- serveHTTP(httpSrv, cfg, logger) }()

	var runErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal", zap.String("reason", "context canceled"))
	case runErr = <-httpErrCh:
		if runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			logger.Error("http serve", zap.Error(runErr))
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	_ = httpSrv.Shutdown(shCtx)

	time.Sleep(100 * time.Millisecond)
	logger.Info("bye")
}
