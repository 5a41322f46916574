package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Rrens/support-chat/internal/api/handler"
	customMiddleware "github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/service"
)

// Deps are the collaborators the router wires into handlers
type Deps struct {
	Widgets *service.WidgetService
	Storage domain.Pinger
	// Limiter is optional; sends are not rate limited without it
	Limiter customMiddleware.Limiter
	// UploadDir is served under /uploads when set
	UploadDir string
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", customMiddleware.ClientIDHeader},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	widgetHandler := handler.NewWidgetHandler(deps.Widgets, cfg.Uploads.MaxBytes)

	timeout := cfg.Server.MiddlewareTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.Storage))

		r.Route("/widget", func(r chi.Router) {
			r.Use(customMiddleware.ClientID)

			// long-lived stream, outside the request timeout
			r.Get("/events", widgetHandler.Events)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(timeout))

				r.Get("/", widgetHandler.Get)
				r.Post("/toggle", widgetHandler.Toggle)
				r.Post("/retry", widgetHandler.Retry)
				r.Delete("/error", widgetHandler.ClearError)
				r.Post("/escalate", widgetHandler.Escalate)

				r.Post("/uploads", widgetHandler.Upload)
				r.Delete("/uploads/{attachmentID}", widgetHandler.RemoveUpload)

				r.Group(func(r chi.Router) {
					if deps.Limiter != nil {
						r.Use(customMiddleware.NewRateLimitMiddleware(deps.Limiter).Limit)
					}
					r.Post("/messages", widgetHandler.SendMessage)
				})
			})
		})
	})

	if deps.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir))))
	}

	return r
}
