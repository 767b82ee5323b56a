package events

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/event"
	"github.com/NordCoder/Courier/internal/services/api-gateway/respond"
)

type HTTPHandler struct {
	uc  *Usecase
	log *zap.Logger
}

func NewHTTP(uc *Usecase, log *zap.Logger) *HTTPHandler {
	return &HTTPHandler{uc: uc, log: log}
}

func (h *HTTPHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.publish)
	return r
}

// HandleStats serves the per-event-type delivery counters.
func (h *HTTPHandler) HandleStats() http.Handler {
	r := chi.NewRouter()
	r.Get("/events/{type}", h.stats)
	return r
}

func (h *HTTPHandler) publish(w http.ResponseWriter, r *http.Request) {
	var e event.Event
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if err := h.uc.Publish(r.Context(), &e); err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			respond.Fail(w, http.StatusBadRequest, ErrInvalidEvent)
			return
		}
		h.log.Error("publish event", zap.String("event_type", e.Type), zap.Error(err))
		respond.Fail(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}
	respond.JSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *HTTPHandler) stats(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "type")
	if eventType == "" {
		respond.Fail(w, http.StatusBadRequest, errors.New("event type is required"))
		return
	}

	day := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			respond.Fail(w, http.StatusBadRequest, errors.New("date must be YYYY-MM-DD"))
			return
		}
		day = parsed
	}

	s, err := h.uc.Stats(r.Context(), eventType, day)
	if err != nil {
		h.log.Error("event stats", zap.String("event_type", eventType), zap.Error(err))
		respond.Fail(w, http.StatusInternalServerError, errors.New("internal server error"))
		return
	}
	respond.OK(w, s)
}
