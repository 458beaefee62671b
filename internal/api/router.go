package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hackgods/appointment-lifecycle/internal/appointment"
	"github.com/hackgods/appointment-lifecycle/internal/config"
	"github.com/hackgods/appointment-lifecycle/internal/relay"
)

type AppointmentRouterConfig struct {
	Service *appointment.Service
	Logger  *slog.Logger
	Env     string
	Checks  []Check
}

type NotificationRouterConfig struct {
	Service *relay.Service
	Logger  *slog.Logger
	Env     string
	Checks  []Check
}

func newBaseRouter(logger *slog.Logger, health *HealthHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoverMiddleware(logger))
	r.Use(middleware.StripSlashes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.Get("/health", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	return r
}

func NewAppointmentRouter(cfg AppointmentRouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := newBaseRouter(logger, NewHealthHandler(config.ServiceAppointment, cfg.Env, cfg.Checks...))

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", createAppointmentHandler(cfg.Service, logger))
		r.Get("/", listAppointmentsHandler(cfg.Service, logger))
		r.Get("/{id}", getAppointmentHandler(cfg.Service, logger))
		r.Patch("/{id}/status", updateStatusHandler(cfg.Service, logger))
		r.Get("/{id}/events", listEventsHandler(cfg.Service, logger))
	})

	return r
}

func NewNotificationRouter(cfg NotificationRouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := newBaseRouter(logger, NewHealthHandler(config.ServiceNotification, cfg.Env, cfg.Checks...))

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", createNotificationHandler(cfg.Service, logger))
		r.Get("/", listNotificationsHandler(cfg.Service, logger))
		r.Get("/{id}", getNotificationHandler(cfg.Service, logger))
	})

	return r
}
