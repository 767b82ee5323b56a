package notifications

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
	"github.com/NordCoder/Courier/internal/services/api-gateway/respond"
)

const defaultAttemptsLimit = 50

type ScheduleRequest struct {
	CreateRequest
	ScheduledAt time.Time `json:"scheduled_at"`
}

type ListResponse struct {
	Items []*notification.Notification `json:"items"`
	Total int64                        `json:"total"`
	Page  int                          `json:"page"`
	Limit int                          `json:"limit"`
}

type HTTPHandler struct {
	uc  *Usecase
	log *zap.Logger
}

func NewHTTP(uc *Usecase, log *zap.Logger) *HTTPHandler {
	return &HTTPHandler{uc: uc, log: log}
}

func (h *HTTPHandler) Handle() http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.create)
	r.Post("/schedule", h.schedule)
	r.Get("/", h.list)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/attempts", h.attempts)
		r.Post("/cancel", h.cancel)
		r.Post("/resend", h.resend)
	})
	return r
}

func (h *HTTPHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	n, err := h.uc.CreateAndEnqueue(r.Context(), &req)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.Created(w, n)
}

func (h *HTTPHandler) schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}
	if req.ScheduledAt.IsZero() {
		respond.Fail(w, http.StatusBadRequest, errors.New("scheduled_at is required"))
		return
	}
	n, err := h.uc.Schedule(r.Context(), &req.CreateRequest, req.ScheduledAt)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.Created(w, n)
}

func (h *HTTPHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := notification.Filter{
		UserID: q.Get("user_id"),
		Status: notification.Status(q.Get("status")),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	items, total, err := h.uc.ListForUser(r.Context(), f)
	if err != nil {
		h.fail(w, err)
		return
	}
	if items == nil {
		items = []*notification.Notification{}
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	respond.OK(w, ListResponse{Items: items, Total: total, Page: f.Page, Limit: f.Limit})
}

func (h *HTTPHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	n, err := h.uc.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, n)
}

func (h *HTTPHandler) attempts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultAttemptsLimit
	}
	rows, err := h.uc.Attempts(r.Context(), id, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if rows == nil {
		rows = []*notification.Attempt{}
	}
	respond.OK(w, rows)
}

func (h *HTTPHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	n, err := h.uc.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, n)
}

func (h *HTTPHandler) resend(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	n, err := h.uc.Resend(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	respond.OK(w, n)
}

func (h *HTTPHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil || id == uuid.Nil {
		respond.Fail(w, http.StatusBadRequest, errors.New("invalid notification id"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *HTTPHandler) fail(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		respond.Fail(w, http.StatusBadRequest, err)
	case errors.Is(err, notification.ErrNotFound):
		respond.Fail(w, http.StatusNotFound, notification.ErrNotFound)
	case errors.Is(err, ErrNotCancellable), errors.Is(err, ErrNotResendable):
		respond.Fail(w, http.StatusConflict, err)
	case errors.Is(err, queue.ErrUnavailable):
		h.log.Error("queue backend", zap.Error(err))
		respond.Fail(w, http.StatusServiceUnavailable, queue.ErrUnavailable)
	default:
		h.log.Error("request failed", zap.Error(err))
		respond.Fail(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}
