package worker

import (
	"context"
	"log/slog"

	"github.com/Chronic700/agent-connect/internal/dispatch"
	"github.com/Chronic700/agent-connect/internal/domain"
	"github.com/Chronic700/agent-connect/internal/engine"
	"github.com/redis/go-redis/v9"
)

// PresenceChangeChannel is the Redis pub/sub channel the presence
// boundary handler publishes an agent id to on an offline→online edge
// (spec.md §4.6, grounded in
// original_source/backend/app/workers/message_delivery.py's
// pubsub.subscribe('agent_status_change')).
const PresenceChangeChannel = "agent_status_change"

// FlushRateLimiter gates how often a single recipient's backlog can be
// flushed in a burst. Advisory: a rate-limited flush just waits for the
// next poll tick, it never marks anything failed.
type FlushRateLimiter interface {
	Allow(ctx context.Context, agentID string, limit int) bool
}

// FastPath reacts to presence-change notifications by immediately
// attempting delivery of a recipient's queued backlog, instead of
// waiting for the next poll tick (spec.md §4.6).
type FastPath struct {
	redisClient *redis.Client
	messages    MessageStore
	presence    PresenceStore
	dispatcher  Dispatcher
	scheduler   Scheduler
	applier     *OutcomeApplier
	limiter     FlushRateLimiter // advisory, nil disables it
	breaker     *engine.CircuitBreaker
	broadcast   OutcomeBroadcaster
	flushLimit  int
	logger      *slog.Logger
}

func NewFastPath(
	redisClient *redis.Client,
	messages MessageStore,
	presence PresenceStore,
	dispatcher Dispatcher,
	scheduler Scheduler,
	applier *OutcomeApplier,
	limiter FlushRateLimiter,
	breaker *engine.CircuitBreaker,
	broadcast OutcomeBroadcaster,
	flushLimit int,
	logger *slog.Logger,
) *FastPath {
	return &FastPath{
		redisClient: redisClient,
		messages:    messages,
		presence:    presence,
		dispatcher:  dispatcher,
		scheduler:   scheduler,
		applier:     applier,
		limiter:     limiter,
		breaker:     breaker,
		broadcast:   broadcast,
		flushLimit:  flushLimit,
		logger:      logger,
	}
}

// Run subscribes to PresenceChangeChannel and flushes the named agent's
// backlog each time a message arrives, until ctx is cancelled.
func (f *FastPath) Run(ctx context.Context) error {
	sub := f.redisClient.Subscribe(ctx, PresenceChangeChannel)
	defer sub.Close()

	ch := sub.Channel()
	f.logger.Info("fast path subscribed", "channel", PresenceChangeChannel)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			f.Flush(ctx, msg.Payload)
		}
	}
}

// Flush attempts immediate delivery of every queued message addressed
// to agentID, in reaction to an offline→online edge.
func (f *FastPath) Flush(ctx context.Context, agentID string) {
	if f.limiter != nil && !f.limiter.Allow(ctx, agentID, f.flushLimit) {
		f.logger.Debug("fast path flush rate limited, deferring to poll path", "agent_id", agentID)
		return
	}

	recipient, err := f.presence.GetAgent(ctx, agentID)
	if err != nil {
		f.logger.Error("fast path looking up recipient", "agent_id", agentID, "error", err)
		return
	}
	if recipient == nil || recipient.Status != domain.AgentOnline {
		return
	}

	msgs, err := f.messages.ListQueuedFor(ctx, agentID)
	if err != nil {
		f.logger.Error("fast path listing backlog", "agent_id", agentID, "error", err)
		return
	}

	for _, m := range msgs {
		f.process(ctx, m, *recipient)
	}
}

// process attempts a backlog message immediately, per spec.md §4.6:
// retry_count is preserved, so AttemptsExhausted still bounds the total
// number of attempts, but the ladder delay is not consulted, so the
// message does not wait out its remaining backoff.
func (f *FastPath) process(ctx context.Context, msg domain.Message, recipient domain.Agent) {
	if f.scheduler.AttemptsExhausted(msg) {
		reason := "retry budget exhausted"
		if msg.Error != nil {
			reason = *msg.Error
		}
		if _, err := f.applier.MarkFailed(ctx, msg, reason); err != nil {
			f.logger.Error("fast path marking exhausted message failed", "message_id", msg.ID, "error", err)
		}
		return
	}

	if f.breaker != nil {
		if _, allowed := f.breaker.AllowRequest(ctx, msg.ToAgent); !allowed {
			return
		}
	}

	outcome, err := f.dispatcher.Dispatch(ctx, msg, recipient)
	if err != nil {
		f.logger.Warn("fast path dispatch errored, leaving queued for poll path",
			"message_id", msg.ID, "to_agent", msg.ToAgent, "error", err)
		return
	}

	if f.breaker != nil {
		switch outcome.Kind {
		case dispatch.Success:
			f.breaker.RecordSuccess(ctx, msg.ToAgent)
		case dispatch.Transient:
			f.breaker.RecordFailure(ctx, msg.ToAgent)
		}
	}

	if _, err := f.applier.Apply(ctx, msg, outcome); err != nil {
		f.logger.Error("fast path applying delivery outcome", "message_id", msg.ID, "error", err)
		return
	}
	if f.broadcast != nil {
		f.broadcast.BroadcastOutcome(msg, outcome)
	}
}
