package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	config "github.com/NordCoder/Courier/internal/config/api-gateway"
	"github.com/NordCoder/Courier/internal/obs"
	pg "github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/repository/redisq"
	"github.com/NordCoder/Courier/internal/services/api-gateway/events"
	"github.com/NordCoder/Courier/internal/services/api-gateway/notifications"
)

func buildHTTPServer(
	cfg *config.Config,
	db *pg.DB,
	store *redisq.Store,
	notifHTTP *notifications.HTTPHandler,
	eventsHTTP *events.HTTPHandler,
) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/notifications", notifHTTP.Handle())
		r.Mount("/events", eventsHTTP.Handle())
		r.Mount("/stats", eventsHTTP.HandleStats())
	})

	r.Handle("/metrics", obs.MetricsHandler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		hctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()
		if err := db.Pool.Ping(hctx); err != nil {
			http.Error(w, "unhealthy: db", http.StatusServiceUnavailable)
			return
		}
		if err := store.Ping(hctx); err != nil {
			http.Error(w, "unhealthy: redis", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           otelhttp.NewHandler(r, "api-gateway"),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}

func serveHTTP(srv *http.Server, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("http listening", zap.String("addr", cfg.Server.HTTPAddr))
	return srv.ListenAndServe()
}
