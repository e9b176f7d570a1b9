package worker

import (
	"context"
	"sync"

	"github.com/Chronic700/agent-connect/internal/dispatch"
	"github.com/Chronic700/agent-connect/internal/domain"
)

// fakeMessageStore is an in-memory stand-in for store.PostgresStore's
// message methods, keyed and guarded like the real conditional update
// so tests can exercise the lost-race path without a live Postgres.
type fakeMessageStore struct {
	mu       sync.Mutex
	messages map[string]domain.Message
}

func newFakeMessageStore(msgs ...domain.Message) *fakeMessageStore {
	s := &fakeMessageStore{messages: map[string]domain.Message{}}
	for _, m := range msgs {
		s.messages[m.ID] = m
	}
	return s
}

func (s *fakeMessageStore) ListQueued(ctx context.Context) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.Status == domain.MessageQueued {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) ListQueuedFor(ctx context.Context, toAgent string) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Message
	for _, m := range s.messages {
		if m.Status == domain.MessageQueued && m.ToAgent == toAgent {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *fakeMessageStore) Update(ctx context.Context, msg domain.Message, observedStatus domain.MessageStatus, observedRetryCount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.messages[msg.ID]
	if !ok || current.Status != observedStatus || current.RetryCount != observedRetryCount {
		return false, nil
	}
	s.messages[msg.ID] = msg
	return true, nil
}

func (s *fakeMessageStore) get(id string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id]
}

type fakePresenceStore struct {
	mu     sync.Mutex
	agents map[string]domain.Agent
}

func newFakePresenceStore(agents ...domain.Agent) *fakePresenceStore {
	s := &fakePresenceStore{agents: map[string]domain.Agent{}}
	for _, a := range agents {
		s.agents[a.ID] = a
	}
	return s
}

func (s *fakePresenceStore) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// fakeDispatcher returns a scripted outcome per call, recording every
// message it was asked to dispatch.
type fakeDispatcher struct {
	mu       sync.Mutex
	outcomes []dispatch.Outcome
	calls    []domain.Message
	err      error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, msg domain.Message, recipient domain.Agent) (dispatch.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, msg)
	if d.err != nil {
		return dispatch.Outcome{}, d.err
	}
	if len(d.outcomes) == 0 {
		return dispatch.Outcome{Kind: dispatch.Success}, nil
	}
	o := d.outcomes[0]
	d.outcomes = d.outcomes[1:]
	return o, nil
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls int
}

func (b *fakeBroadcaster) BroadcastOutcome(msg domain.Message, outcome dispatch.Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
}

type fakeLimiter struct {
	allow bool
}

func (l *fakeLimiter) Allow(ctx context.Context, agentID string, limit int) bool {
	return l.allow
}
