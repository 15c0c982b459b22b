package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"gym_reminder_service/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the HTTP surface. payments may be nil when payment verification is disabled.
func NewRouter(reminders *ReminderHandler, payments *PaymentHandler, health *HealthHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(countRequests)

	r.Post("/functions/expiry-reminders", reminders.Trigger)
	if payments != nil {
		r.With(middleware.Timeout(30*time.Second)).Post("/payments/verify", payments.Verify)
	}

	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		metrics.RequestCount.WithLabelValues(path, r.Method, strconv.Itoa(ww.Status())).Inc()
	})
}
