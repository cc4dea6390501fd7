package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-availability/internal/appointment"
	"github.com/hackgods/clinic-availability/internal/auth"
	"github.com/hackgods/clinic-availability/internal/availability"
	"github.com/hackgods/clinic-availability/internal/metrics"
	"github.com/hackgods/clinic-availability/internal/users"
)

type RouterConfig struct {
	Slots        *availability.Manager
	Directory    availability.Directory
	Appointments *appointment.Service
	Users        *users.Service
	Verifier     auth.Verifier

	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Checks   []Check
	Logger   *zap.Logger

	Env               string
	Version           string
	BookingRatePerMin int
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger, cfg.Metrics))

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	requireAuth := AuthMiddleware(cfg.Verifier, logger)
	bookingLimit := RateLimitMiddleware(cfg.BookingRatePerMin, logger)

	r.Route("/doctors", func(r chi.Router) {
		r.Get("/", listDoctorsHandler(cfg.Directory, logger))
		r.Get("/{doctorID}/slots", listSlotsHandler(cfg.Slots, logger))
		r.Get("/{doctorID}/slots/stream", streamSlotsHandler(cfg.Slots, logger))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/{doctorID}/slots", addSlotHandler(cfg.Slots, logger))
			r.Put("/{doctorID}/slots/{slotID}", updateSlotHandler(cfg.Slots, logger))
			r.Delete("/{doctorID}/slots/{slotID}", removeSlotHandler(cfg.Slots, logger))
			r.With(bookingLimit).Post("/{doctorID}/slots/{slotID}/book", bookSlotHandler(cfg.Slots, logger))
		})
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", listAppointmentsHandler(cfg.Appointments, logger))
		r.Get("/stream", streamAppointmentsHandler(cfg.Appointments, logger))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments, logger))
		r.Patch("/{id}/status", updateStatusHandler(cfg.Appointments, logger))
		r.Patch("/{id}/notes", updateNotesHandler(cfg.Appointments, logger))
		r.Post("/{id}/documents", attachDocumentHandler(cfg.Appointments, logger))
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", getProfileHandler(cfg.Users, logger))
		r.Put("/me", updateProfileHandler(cfg.Users, logger))
		r.Put("/me/fcm-token", pushTokenHandler(cfg.Users, logger))

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(logger))
			r.Get("/", listUsersHandler(cfg.Users, logger))
			r.Post("/doctors", createDoctorHandler(cfg.Users, logger))
			r.Delete("/{uid}", deleteUserHandler(cfg.Users, logger))
		})
	})

	return r
}
