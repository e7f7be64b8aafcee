package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smartwell-la/smartwell-platform/internal/api/respond"
	"github.com/smartwell-la/smartwell-platform/internal/appointments"
	httpmiddleware "github.com/smartwell-la/smartwell-platform/internal/http/middleware"
	"github.com/smartwell-la/smartwell-platform/internal/notify"
	"github.com/smartwell-la/smartwell-platform/internal/professionals"
	"github.com/smartwell-la/smartwell-platform/internal/reminders"
	"github.com/smartwell-la/smartwell-platform/internal/reviews"
	"github.com/smartwell-la/smartwell-platform/internal/rooms"
	"github.com/smartwell-la/smartwell-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger *logging.Logger

	ProfessionalsHandler *professionals.Handler
	AppointmentsHandler  *appointments.Handler
	ReviewsHandler       *reviews.Handler
	NotificationsHandler *notify.Handler
	RoomsHandler         *rooms.Handler
	RemindersHandler     *reminders.Handler

	RateLimiter *httpmiddleware.RateLimiter

	JWTSecret          string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	auth := httpmiddleware.Auth(cfg.JWTSecret)
	limit := func(p httpmiddleware.Preset) func(http.Handler) http.Handler {
		if cfg.RateLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return cfg.RateLimiter.Limit(p)
	}

	// Public endpoints (discovery, health, metrics, websocket entry)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			respond.OK(w, "ok", nil)
		})
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.ProfessionalsHandler != nil {
			cfg.ProfessionalsHandler.PublicRoutes(public)
		}
		if cfg.ReviewsHandler != nil {
			cfg.ReviewsHandler.PublicRoutes(public)
		}
		// The websocket endpoint authenticates with a one-time room token
		// rather than the Authorization header, so it stays public here.
		if cfg.RoomsHandler != nil {
			cfg.RoomsHandler.PublicRoutes(public)
		}
	})

	// Patient routes
	r.Group(func(patient chi.Router) {
		patient.Use(auth)
		patient.Use(httpmiddleware.RequireRole(httpmiddleware.RolePatient))
		patient.Use(limit(httpmiddleware.PresetAPI))

		if cfg.AppointmentsHandler != nil {
			cfg.AppointmentsHandler.PatientRoutes(patient)
		}
		if cfg.ReviewsHandler != nil {
			cfg.ReviewsHandler.PatientRoutes(patient)
		}
		if cfg.RoomsHandler != nil {
			cfg.RoomsHandler.AuthedRoutes(patient)
		}
		if cfg.NotificationsHandler != nil {
			cfg.NotificationsHandler.Routes(patient)
		}
	})

	// Professional routes
	r.Route("/pro", func(pro chi.Router) {
		pro.Use(auth)
		pro.Use(httpmiddleware.RequireRole(httpmiddleware.RoleProfessional))
		pro.Use(limit(httpmiddleware.PresetAPI))

		if cfg.ProfessionalsHandler != nil {
			cfg.ProfessionalsHandler.ProfessionalRoutes(pro)
		}
		if cfg.AppointmentsHandler != nil {
			cfg.AppointmentsHandler.ProfessionalRoutes(pro)
		}
		if cfg.ReviewsHandler != nil {
			cfg.ReviewsHandler.ProfessionalRoutes(pro)
		}
		if cfg.RoomsHandler != nil {
			cfg.RoomsHandler.AuthedRoutes(pro)
		}
		if cfg.NotificationsHandler != nil {
			cfg.NotificationsHandler.Routes(pro)
		}
	})

	// Admin routes (back office)
	r.Route("/admin", func(admin chi.Router) {
		admin.Use(auth)
		admin.Use(httpmiddleware.RequireRole(httpmiddleware.RoleAdmin))
		admin.Use(limit(httpmiddleware.PresetAdmin))

		if cfg.ProfessionalsHandler != nil {
			cfg.ProfessionalsHandler.AdminRoutes(admin)
		}
		if cfg.AppointmentsHandler != nil {
			cfg.AppointmentsHandler.AdminRoutes(admin)
		}
		if cfg.ReviewsHandler != nil {
			cfg.ReviewsHandler.AdminRoutes(admin)
		}
	})

	// Internal cron trigger, authenticated by the X-Cron-Secret header.
	if cfg.RemindersHandler != nil {
		r.Group(func(internal chi.Router) {
			cfg.RemindersHandler.Routes(internal)
		})
	}

	return r
}
