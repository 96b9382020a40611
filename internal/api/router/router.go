package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/staffline/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/staffline/internal/http/middleware"
	"github.com/wolfman30/staffline/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Chat               *handlers.ChatHandler
	Health             http.Handler
	MetricsHandler     http.Handler
	RateLimiter        *httpmiddleware.RateLimiter
	CORSAllowedOrigins []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	health := cfg.Health
	if health == nil {
		health = handlers.NewHealthHandler(nil, cfg.Logger)
	}
	r.Method(http.MethodGet, "/health", health)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Chat == nil {
		return r
	}
	r.Route("/v1", func(v1 chi.Router) {
		if cfg.RateLimiter != nil {
			v1.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		v1.Post("/chat/messages", cfg.Chat.PostMessage)
		v1.Post("/chat/messages/async", cfg.Chat.PostMessageAsync)
		v1.Post("/classify", cfg.Chat.Classify)
		v1.Route("/candidates/{candidateID}", func(c chi.Router) {
			c.Get("/dialogue", cfg.Chat.GetDialogue)
			c.Get("/bookings", cfg.Chat.GetBookings)
		})
	})
	return r
}
