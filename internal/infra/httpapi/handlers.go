package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"gym_reminder_service/internal/app"
	idb "gym_reminder_service/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// runTimeout bounds a run once it is detached from the caller's request.
const runTimeout = 30 * time.Minute

// Pinger reports storage readiness.
type Pinger interface {
	Ping() error
}

type triggerRequest struct {
	Manual bool `json:"manual"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ReminderHandler exposes the expiry reminder job over HTTP.
type ReminderHandler struct {
	runner app.Runner
	logger *logrus.Entry
}

func NewReminderHandler(runner app.Runner, logger *logrus.Entry) *ReminderHandler {
	return &ReminderHandler{runner: runner, logger: logger}
}

// Trigger runs the job. The body is optional; {"manual": true} only marks the run as manual.
// The run does not inherit the request's cancellation: a caller that disconnects mid-run
// must not abort it, since an aborted run releases the day's claim.
func (h *ReminderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), runTimeout)
	defer cancel()

	result, err := h.runner.Run(ctx, app.RunOptions{Manual: req.Manual, Trigger: "http"})
	if err != nil {
		h.logger.WithError(err).Error("Reminder run failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// PaymentHandler verifies gateway payment callbacks.
type PaymentHandler struct {
	service *app.PaymentService
	logger  *logrus.Entry
}

func NewPaymentHandler(s *app.PaymentService, logger *logrus.Entry) *PaymentHandler {
	return &PaymentHandler{service: s, logger: logger}
}

func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req app.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid payload"})
		return
	}

	result, err := h.service.Verify(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidSignature), errors.Is(err, app.ErrInvalidPaymentRequest):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, idb.ErrMemberNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		default:
			h.logger.WithError(err).Error("Payment verification failed")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
