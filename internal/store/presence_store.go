package store

import (
	"context"
	"fmt"

	"github.com/Chronic700/agent-connect/internal/domain"
	"github.com/jackc/pgx/v5"
)

// GetAgent returns the presence view of an agent, or nil if it does not
// exist (spec.md §4.2 — the core must tolerate a vanished recipient).
func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	var a domain.Agent
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, webhook_url, secret, updated_at FROM agents WHERE id = $1
	`, id).Scan(&a.ID, &a.Status, &a.WebhookURL, &a.Secret, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying agent: %w", err)
	}
	return &a, nil
}

// SetAgentStatus flips an agent's presence and reports whether this was
// an offline->online edge, which is what the fast path (spec.md §4.6)
// should react to. Mutations to presence happen outside the core
// (spec.md §4.2) — this method exists for the thin boundary handler
// that accepts presence-change requests on an agent's behalf.
func (s *PostgresStore) SetAgentStatus(ctx context.Context, id string, status domain.AgentStatus) (wentOnline bool, err error) {
	var previous domain.AgentStatus
	err = s.pool.QueryRow(ctx, `
		WITH old AS (SELECT status FROM agents WHERE id = $1 FOR UPDATE)
		UPDATE agents SET status = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING (SELECT status FROM old)
	`, id, status).Scan(&previous)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, fmt.Errorf("agent %s not found", id)
		}
		return false, fmt.Errorf("updating agent status: %w", err)
	}
	return previous == domain.AgentOffline && status == domain.AgentOnline, nil
}

// CreateAgent registers a presence row directly. The public
// registration/auth flow is out of scope for the core (spec.md §1); this
// exists so tests and operators can seed agents without standing up the
// excluded API layer.
func (s *PostgresStore) CreateAgent(ctx context.Context, a domain.Agent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (id, status, webhook_url, secret, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, a.ID, a.Status, a.WebhookURL, a.Secret)
	if err != nil {
		return fmt.Errorf("inserting agent: %w", err)
	}
	return nil
}
