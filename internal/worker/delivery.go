package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Chronic700/agent-connect/internal/dispatch"
	"github.com/Chronic700/agent-connect/internal/domain"
	"github.com/Chronic700/agent-connect/internal/engine"
)

// OutcomeBroadcaster is the observational side channel (internal/websocket.Hub)
// that the worker reports delivery outcomes to. Purely best-effort — a
// broadcaster that drops events never affects delivery state.
type OutcomeBroadcaster interface {
	BroadcastOutcome(msg domain.Message, outcome dispatch.Outcome)
}

// DeliveryWorker implements the poll-based scan of spec.md §4.5: each
// tick it walks every queued message, resolves the recipient's
// presence, and attempts delivery of whatever is due.
type DeliveryWorker struct {
	messages   MessageStore
	presence   PresenceStore
	dispatcher Dispatcher
	scheduler  Scheduler
	applier    *OutcomeApplier
	breaker    *engine.CircuitBreaker // advisory, nil disables it
	pool       *Pool                  // nil means process inline, single-worker
	broadcast  OutcomeBroadcaster     // nil disables the side channel
	logger     *slog.Logger
}

func NewDeliveryWorker(
	messages MessageStore,
	presence PresenceStore,
	dispatcher Dispatcher,
	scheduler Scheduler,
	applier *OutcomeApplier,
	breaker *engine.CircuitBreaker,
	pool *Pool,
	broadcast OutcomeBroadcaster,
	logger *slog.Logger,
) *DeliveryWorker {
	return &DeliveryWorker{
		messages:   messages,
		presence:   presence,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		applier:    applier,
		breaker:    breaker,
		pool:       pool,
		broadcast:  broadcast,
		logger:     logger,
	}
}

// Run ticks every interval until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				w.logger.Error("delivery worker tick failed", "error", err)
			}
		}
	}
}

// Tick scans every queued message once and attempts each one that is due.
func (w *DeliveryWorker) Tick(ctx context.Context) error {
	msgs, err := w.messages.ListQueued(ctx)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		m := m
		if w.pool != nil {
			w.pool.Submit(func(ctx context.Context) { w.process(ctx, m) })
		} else {
			w.process(ctx, m)
		}
	}
	return nil
}

// process implements the per-message decision tree of spec.md §4.5.
func (w *DeliveryWorker) process(ctx context.Context, msg domain.Message) {
	recipient, err := w.presence.GetAgent(ctx, msg.ToAgent)
	if err != nil {
		w.logger.Error("looking up recipient", "message_id", msg.ID, "to_agent", msg.ToAgent, "error", err)
		return
	}
	if recipient == nil {
		if _, err := w.applier.MarkFailed(ctx, msg, "recipient not found"); err != nil {
			w.logger.Error("marking message failed for missing recipient", "message_id", msg.ID, "error", err)
		}
		return
	}
	if recipient.Status != domain.AgentOnline {
		return
	}
	if w.scheduler.AttemptsExhausted(msg) {
		reason := "retry budget exhausted"
		if msg.Error != nil {
			reason = *msg.Error
		}
		if _, err := w.applier.MarkFailed(ctx, msg, reason); err != nil {
			w.logger.Error("marking exhausted message failed", "message_id", msg.ID, "error", err)
		}
		return
	}
	if !w.scheduler.IsDue(msg, time.Now().UTC()) {
		return
	}
	if w.breaker != nil {
		if _, allowed := w.breaker.AllowRequest(ctx, msg.ToAgent); !allowed {
			return
		}
	}

	outcome, err := w.dispatcher.Dispatch(ctx, msg, *recipient)
	if err != nil {
		w.logger.Warn("dispatch attempt errored, leaving queued for next tick",
			"message_id", msg.ID, "to_agent", msg.ToAgent, "error", err)
		return
	}

	if w.breaker != nil {
		switch outcome.Kind {
		case dispatch.Success:
			w.breaker.RecordSuccess(ctx, msg.ToAgent)
		case dispatch.Transient:
			w.breaker.RecordFailure(ctx, msg.ToAgent)
		}
	}

	if _, err := w.applier.Apply(ctx, msg, outcome); err != nil {
		w.logger.Error("applying delivery outcome", "message_id", msg.ID, "error", err)
		return
	}
	if w.broadcast != nil {
		w.broadcast.BroadcastOutcome(msg, outcome)
	}
}
