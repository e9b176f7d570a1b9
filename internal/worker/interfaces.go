package worker

import (
	"context"
	"time"

	"github.com/Chronic700/agent-connect/internal/dispatch"
	"github.com/Chronic700/agent-connect/internal/domain"
)

// MessageStore is the subset of the message store (C1, spec.md §4.1)
// the delivery worker needs.
type MessageStore interface {
	ListQueued(ctx context.Context) ([]domain.Message, error)
	ListQueuedFor(ctx context.Context, toAgent string) ([]domain.Message, error)
	Update(ctx context.Context, msg domain.Message, observedStatus domain.MessageStatus, observedRetryCount int) (bool, error)
}

// PresenceStore is the read-only presence view (C2, spec.md §4.2).
type PresenceStore interface {
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
}

// Dispatcher performs a single delivery attempt (C3, spec.md §4.3).
type Dispatcher interface {
	Dispatch(ctx context.Context, msg domain.Message, recipient domain.Agent) (dispatch.Outcome, error)
}

// Scheduler is the retry ladder (C4, spec.md §4.4).
type Scheduler interface {
	IsDue(msg domain.Message, now time.Time) bool
	AttemptsExhausted(msg domain.Message) bool
	MaxRetries() int
}
