package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Chronic700/agent-connect/internal/domain"
	"github.com/Chronic700/agent-connect/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// MessageHandler implements the enqueue boundary (spec.md §4.7) and the
// read side operators use to observe a message's status (spec.md §7).
type MessageHandler struct {
	store *store.PostgresStore
}

func NewMessageHandler(s *store.PostgresStore) *MessageHandler {
	return &MessageHandler{store: s}
}

type enqueueRequest struct {
	FromAgent string          `json:"from_agent"`
	ToAgent   string          `json:"to_agent"`
	Content   json.RawMessage `json:"content"`
}

type enqueueResponse struct {
	MessageID string               `json:"message_id"`
	Status    domain.MessageStatus `json:"status"`
}

// Create enqueues a new message. It does not check recipient existence
// or presence — that is resolved at dispatch time (spec.md §4.7).
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FromAgent == "" {
		respondError(w, http.StatusBadRequest, "from_agent is required")
		return
	}
	if req.ToAgent == "" {
		respondError(w, http.StatusBadRequest, "to_agent is required")
		return
	}
	var contentObj map[string]json.RawMessage
	if len(req.Content) == 0 || json.Unmarshal(req.Content, &contentObj) != nil || contentObj == nil {
		respondError(w, http.StatusBadRequest, "content must be a valid JSON object")
		return
	}

	msg := domain.Message{
		ID:        uuid.NewString(),
		FromAgent: req.FromAgent,
		ToAgent:   req.ToAgent,
		Content:   req.Content,
		Status:    domain.MessageQueued,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.store.Insert(r.Context(), msg); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to enqueue message")
		return
	}

	respondJSON(w, http.StatusCreated, enqueueResponse{MessageID: msg.ID, Status: msg.Status})
}

// Get exposes a message's current status, retry bookkeeping, and error
// for the caller to observe delivery progress.
func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	msg, err := h.store.GetMessage(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to look up message")
		return
	}
	if msg == nil {
		respondError(w, http.StatusNotFound, "message not found")
		return
	}

	respondJSON(w, http.StatusOK, msg)
}
