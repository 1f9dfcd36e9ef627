package router

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jparrish/portfolio-platform/internal/appointments"
	"github.com/jparrish/portfolio-platform/internal/chat"
	"github.com/jparrish/portfolio-platform/internal/documents"
	"github.com/jparrish/portfolio-platform/internal/gallery"
	"github.com/jparrish/portfolio-platform/internal/http/handlers"
	httpmiddleware "github.com/jparrish/portfolio-platform/internal/http/middleware"
	"github.com/jparrish/portfolio-platform/internal/payments"
	"github.com/jparrish/portfolio-platform/internal/scheduling"
	"github.com/jparrish/portfolio-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	AppointmentsHandler *appointments.Handler
	BookingHandler      *scheduling.Handler
	PaymentsHandler     *payments.Handler
	PaymentWebhook      *payments.WebhookHandler
	ChatHandler         *chat.Handler
	DocumentsHandler    *documents.Handler
	GalleryHandler      *gallery.Handler
	MetricsHandler      http.Handler

	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Booking submissions per second per IP; zero disables rate limiting.
	BookingRateLimit float64
	BookingRateBurst int

	// Admin dashboard dependency (optional)
	DB *sql.DB
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

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

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/healthz", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.PaymentWebhook != nil {
			public.Post("/payment-webhook", cfg.PaymentWebhook.Handle)
		}
	})

	// Visitor-facing API
	r.Group(func(api chi.Router) {
		if cfg.BookingRateLimit > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.BookingRateLimit, cfg.BookingRateBurst))
		}

		if cfg.BookingHandler != nil {
			api.Get("/topics", cfg.BookingHandler.Topics)
			api.Get("/availability", cfg.BookingHandler.Slots)
			api.Route("/bookings", func(b chi.Router) {
				b.Post("/", cfg.BookingHandler.Start)
				b.Route("/{sessionID}", func(s chi.Router) {
					s.Get("/", cfg.BookingHandler.Get)
					s.Post("/date", cfg.BookingHandler.SelectDate)
					s.Post("/time", cfg.BookingHandler.SelectTime)
					s.Post("/topic", cfg.BookingHandler.SelectTopic)
					s.Post("/details", cfg.BookingHandler.EnterDetails)
					s.Post("/back", cfg.BookingHandler.Back)
					s.Post("/submit", cfg.BookingHandler.Submit)
				})
			})
		}

		if cfg.AppointmentsHandler != nil {
			api.Post("/appointments", cfg.AppointmentsHandler.Create)
			api.Get("/appointments/{appointmentID}", cfg.AppointmentsHandler.Get)
		}

		if cfg.PaymentsHandler != nil {
			api.Post("/payment-intents", cfg.PaymentsHandler.CreateIntent)
			api.Post("/confirm-payment", cfg.PaymentsHandler.Confirm)
		}

		if cfg.ChatHandler != nil {
			api.Route("/chat", func(c chi.Router) {
				c.Get("/ws", cfg.ChatHandler.HandleWebSocket)
				c.Post("/message", cfg.ChatHandler.HandleMessage)
				c.Get("/history", cfg.ChatHandler.HandleHistory)
			})
		}

		if cfg.DocumentsHandler != nil {
			api.Route("/documents", func(d chi.Router) {
				d.Post("/", cfg.DocumentsHandler.Upload)
				d.Get("/{jobID}", cfg.DocumentsHandler.Status)
			})
		}

		if cfg.GalleryHandler != nil {
			api.Get("/gallery", cfg.GalleryHandler.List)
		}
	})

	// Admin routes (protected by JWT)
	if cfg.AdminAuthSecret != "" && cfg.DB != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			apptHandler := handlers.NewAdminAppointmentsHandler(cfg.DB, cfg.Logger)
			admin.Get("/appointments", apptHandler.ListAppointments)
			admin.Get("/appointments/stats", apptHandler.GetAppointmentStats)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
