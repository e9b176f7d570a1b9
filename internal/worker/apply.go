package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Chronic700/agent-connect/internal/dispatch"
	"github.com/Chronic700/agent-connect/internal/domain"
)

// OutcomeApplier is the single place both the poll-based delivery
// worker (C5) and the presence fast-path (C6) funnel a dispatch result
// through. The retry-scheduling source this was distilled from applied
// the retry_count/failed rule separately in each path and let them
// drift — every caller in this repo goes through here instead.
type OutcomeApplier struct {
	store     MessageStore
	scheduler Scheduler
	logger    *slog.Logger
}

func NewOutcomeApplier(store MessageStore, scheduler Scheduler, logger *slog.Logger) *OutcomeApplier {
	return &OutcomeApplier{store: store, scheduler: scheduler, logger: logger}
}

// Apply persists the effect of outcome on msg, conditional on the
// status and retry_count the caller observed before dispatching (spec.md
// §5). A false return with a nil error means another writer already
// moved the message past the observed state — the caller discards its
// result and moves on, it is not an error.
func (a *OutcomeApplier) Apply(ctx context.Context, msg domain.Message, outcome dispatch.Outcome) (bool, error) {
	// An attempt cut short by cancellation (worker shutdown) is not
	// applied: the message stays queued with last_attempt_at unstamped.
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("applying outcome: %w", err)
	}

	observedStatus := msg.Status
	observedRetryCount := msg.RetryCount
	now := time.Now().UTC()

	next := msg
	next.LastAttemptAt = &now

	switch outcome.Kind {
	case dispatch.Success:
		next.Status = domain.MessageDelivered
		next.DeliveredAt = &now
		next.Error = nil

	case dispatch.Terminal:
		next.Status = domain.MessageFailed
		reason := outcome.Reason
		next.Error = &reason

	case dispatch.Transient:
		reason := outcome.Reason
		next.Error = &reason
		next.RetryCount = msg.RetryCount + 1
		if next.RetryCount >= a.scheduler.MaxRetries() {
			next.Status = domain.MessageFailed
		} else {
			next.Status = domain.MessageQueued
		}

	default:
		return false, fmt.Errorf("applying outcome: unknown kind %v", outcome.Kind)
	}

	ok, err := a.store.Update(ctx, next, observedStatus, observedRetryCount)
	if err != nil {
		return false, fmt.Errorf("applying outcome: %w", err)
	}
	if !ok {
		a.logger.Debug("lost write race applying delivery outcome, discarding",
			"message_id", msg.ID, "observed_status", observedStatus, "observed_retry_count", observedRetryCount)
	}
	return ok, nil
}

// MarkFailed transitions msg straight to failed without a dispatch
// attempt — the "recipient not found" case and the retry-budget safety
// net of spec.md §4.5 steps 2 and 3.
func (a *OutcomeApplier) MarkFailed(ctx context.Context, msg domain.Message, reason string) (bool, error) {
	next := msg
	next.Status = domain.MessageFailed
	next.Error = &reason

	ok, err := a.store.Update(ctx, next, msg.Status, msg.RetryCount)
	if err != nil {
		return false, fmt.Errorf("marking message failed: %w", err)
	}
	return ok, nil
}
