package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/api/middleware"
	"github.com/courierchat/courier/internal/config"
	"github.com/courierchat/courier/internal/handlers"
	"github.com/courierchat/courier/internal/relay"
	"github.com/courierchat/courier/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(cfg *config.Config, logger zerolog.Logger, h *handlers.Handler, rl *relay.Relay, redis *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (no-op unless Redis is configured)
	limiter := middleware.NewRateLimiter(redis, logger)
	r.Use(limiter.Middleware)

	// CORS - browser clients send the token cookie cross-origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	auth := middleware.NewAuthMiddleware(cfg.JWTSecret)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes (no auth required)
	r.Get("/health", h.Health)
	r.Get("/people", h.GetPeople)
	r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	// The WebSocket handshake carries its own token check.
	r.Get("/ws", rl.HandleWS)

	// Authenticated routes (require session token cookie)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)

		r.Get("/profile", h.GetProfile)
		r.Get("/messages/{userId}", h.GetMessages)
	})

	return r
}
