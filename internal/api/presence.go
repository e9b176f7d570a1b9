package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Chronic700/agent-connect/internal/domain"
	"github.com/Chronic700/agent-connect/internal/store"
	"github.com/Chronic700/agent-connect/internal/worker"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// PresenceHandler is the external presence-change producer described in
// spec.md §6. It is not part of the core; it exists so the fast path
// (worker.FastPath) has something publishing to
// worker.PresenceChangeChannel, grounded in
// original_source/backend/app/main.py's update_agent_status.
type PresenceHandler struct {
	store       *store.PostgresStore
	redisClient *redis.Client
	logger      *slog.Logger
}

func NewPresenceHandler(s *store.PostgresStore, redisClient *redis.Client, logger *slog.Logger) *PresenceHandler {
	return &PresenceHandler{store: s, redisClient: redisClient, logger: logger}
}

type setPresenceRequest struct {
	Status domain.AgentStatus `json:"status"`
}

// Set flips an agent's presence and, only on an offline→online edge,
// publishes to the fast-path channel. online→online and any→offline
// updates never publish (spec.md §4.6, §9).
func (h *PresenceHandler) Set(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setPresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status != domain.AgentOnline && req.Status != domain.AgentOffline {
		respondError(w, http.StatusBadRequest, "status must be 'online' or 'offline'")
		return
	}

	wentOnline, err := h.store.SetAgentStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, http.StatusNotFound, "agent not found")
		return
	}

	if wentOnline {
		if err := h.redisClient.Publish(r.Context(), worker.PresenceChangeChannel, id).Err(); err != nil {
			// Best-effort: the polling path still covers this agent's
			// backlog, so a publish failure never surfaces to the caller.
			h.logger.Warn("publishing presence-change event failed", "agent_id", id, "error", err)
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": req.Status})
}
