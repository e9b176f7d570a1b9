package dispatch

import (
	"time"

	"github.com/Chronic700/agent-connect/internal/domain"
)

// Scheduler applies the backoff ladder from spec.md §4.4 to decide
// whether a queued message is due for another attempt.
type Scheduler struct {
	ladder     []int // seconds, ladder[n-1] is the delay after the n-th attempt
	maxRetries int
}

// NewScheduler builds a scheduler from a retry ladder and max retry
// count. maxRetries is independent of len(ladder): once retry_count
// reaches maxRetries the message is exhausted even if the ladder has
// more rungs (and vice versa — if maxRetries exceeds the ladder length,
// the last rung's delay is reused for subsequent attempts).
func NewScheduler(ladder []int, maxRetries int) *Scheduler {
	cp := make([]int, len(ladder))
	copy(cp, ladder)
	return &Scheduler{ladder: cp, maxRetries: maxRetries}
}

// MaxRetries returns the configured retry budget.
func (s *Scheduler) MaxRetries() int {
	return s.maxRetries
}

// AttemptsExhausted reports whether msg has used its entire retry
// budget. IsDue does not consult it; callers check AttemptsExhausted
// first and mark an exhausted message failed instead of asking IsDue.
func (s *Scheduler) AttemptsExhausted(msg domain.Message) bool {
	return msg.RetryCount >= s.maxRetries
}

// IsDue reports whether msg should be attempted now: the first attempt
// is always due; subsequent attempts are due once now has advanced past
// the ladder's delay for the current retry_count, measured from
// msg.Base() (last_attempt_at, or created_at if there has been no
// attempt yet).
func (s *Scheduler) IsDue(msg domain.Message, now time.Time) bool {
	if msg.RetryCount == 0 {
		return true
	}
	delay := s.delayFor(msg.RetryCount)
	return !now.Before(msg.Base().Add(delay))
}

func (s *Scheduler) delayFor(retryCount int) time.Duration {
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.ladder) {
		idx = len(s.ladder) - 1
	}
	if idx < 0 {
		return 0
	}
	return time.Duration(s.ladder[idx]) * time.Second
}
