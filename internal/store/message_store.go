package store

import (
	"context"
	"fmt"

	"github.com/Chronic700/agent-connect/internal/domain"
	"github.com/jackc/pgx/v5"
)

// Insert durably persists a new queued message. The caller supplies the
// id (spec.md §4.7 — the enqueue boundary generates it).
func (s *PostgresStore) Insert(ctx context.Context, msg domain.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, from_agent, to_agent, content, status, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.FromAgent, msg.ToAgent, []byte(msg.Content), msg.Status, msg.RetryCount, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return nil
}

// ListQueued returns every message currently in the queued status,
// oldest first by created_at; the order of messages with equal
// created_at is not defined.
func (s *PostgresStore) ListQueued(ctx context.Context) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, from_agent, to_agent, content, status, retry_count, created_at, last_attempt_at, delivered_at, error
		FROM messages
		WHERE status = $1
		ORDER BY created_at
	`, domain.MessageQueued)
	if err != nil {
		return nil, fmt.Errorf("listing queued messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// ListQueuedFor narrows ListQueued to a single recipient — used by the
// presence fast-path (spec.md §4.6) to flush one agent's backlog.
func (s *PostgresStore) ListQueuedFor(ctx context.Context, toAgent string) ([]domain.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, from_agent, to_agent, content, status, retry_count, created_at, last_attempt_at, delivered_at, error
		FROM messages
		WHERE status = $1 AND to_agent = $2
		ORDER BY created_at
	`, domain.MessageQueued, toAgent)
	if err != nil {
		return nil, fmt.Errorf("listing queued messages for agent: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		var content []byte
		if err := rows.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &content, &m.Status,
			&m.RetryCount, &m.CreatedAt, &m.LastAttemptAt, &m.DeliveredAt, &m.Error); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Content = content
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	if out == nil {
		out = []domain.Message{}
	}
	return out, nil
}

// Update persists the mutable fields of msg, conditional on the status
// and retry_count the caller observed when it decided to mutate the
// message (spec.md §5). If another worker already advanced the message
// past that observed state, zero rows are affected and ok is false —
// the caller must discard its result rather than retry the write.
func (s *PostgresStore) Update(ctx context.Context, msg domain.Message, observedStatus domain.MessageStatus, observedRetryCount int) (ok bool, err error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages
		SET status = $1, retry_count = $2, last_attempt_at = $3, delivered_at = $4, error = $5
		WHERE id = $6 AND status = $7 AND retry_count = $8
	`, msg.Status, msg.RetryCount, msg.LastAttemptAt, msg.DeliveredAt, msg.Error,
		msg.ID, observedStatus, observedRetryCount)
	if err != nil {
		return false, fmt.Errorf("updating message: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetMessage returns a single message by id, or nil if it does not
// exist. Used by the status-read side of the enqueue boundary (spec.md §7).
func (s *PostgresStore) GetMessage(ctx context.Context, id string) (*domain.Message, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, from_agent, to_agent, content, status, retry_count, created_at, last_attempt_at, delivered_at, error
		FROM messages WHERE id = $1
	`, id)

	var m domain.Message
	var content []byte
	err := row.Scan(&m.ID, &m.FromAgent, &m.ToAgent, &content, &m.Status,
		&m.RetryCount, &m.CreatedAt, &m.LastAttemptAt, &m.DeliveredAt, &m.Error)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("querying message: %w", err)
	}
	m.Content = content
	return &m, nil
}
