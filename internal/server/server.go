package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/anmarca/chatgrab/internal/config"
)

// NewRouter assembles the analyticsd HTTP surface.
func NewRouter(h *Handler, cfg *config.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	r.With(limiter.Middleware).Post("/events", h.Events)
	r.Get("/stats", h.Stats)
	r.Get("/health", h.Health)

	return r
}
