package api

import (
	"log/slog"
	"net/http"

	"github.com/Chronic700/agent-connect/internal/store"
	ws "github.com/Chronic700/agent-connect/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// NewRouter creates and configures the HTTP router for the enqueue and
// presence-change boundary operations (spec.md §4.7, §6). This is
// deliberately thin: agent registration, credential issuance,
// authentication, and a public REST surface are out of scope for the
// core (spec.md §1) and live in an external API layer this repo does
// not implement.
func NewRouter(pgStore *store.PostgresStore, redisClient *redis.Client, hub *ws.Hub, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	messageHandler := NewMessageHandler(pgStore)
	presenceHandler := NewPresenceHandler(pgStore, redisClient, logger)

	r.Get("/health", HealthHandler())

	if hub != nil {
		r.Get("/ws", hub.HandleWebSocket)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Route("/messages", func(r chi.Router) {
			r.Post("/", messageHandler.Create)
			r.Get("/{id}", messageHandler.Get)
		})

		r.Route("/agents", func(r chi.Router) {
			r.Put("/{id}/presence", presenceHandler.Set)
		})
	})

	return r
}
