package dispatch

import (
	"testing"
	"time"

	"github.com/Chronic700/agent-connect/internal/domain"
)

var ladder = []int{60, 300, 900, 3600, 21600}

func TestScheduler_FirstAttemptAlwaysDue(t *testing.T) {
	s := NewScheduler(ladder, 5)
	msg := domain.Message{RetryCount: 0, CreatedAt: time.Now()}

	if !s.IsDue(msg, time.Now()) {
		t.Error("a message with retry_count 0 should always be due")
	}
}

func TestScheduler_NotDueBeforeDelay(t *testing.T) {
	s := NewScheduler(ladder, 5)
	now := time.Now()
	last := now
	msg := domain.Message{RetryCount: 1, CreatedAt: now.Add(-time.Hour), LastAttemptAt: &last}

	if s.IsDue(msg, now.Add(30*time.Second)) {
		t.Error("message should not be due before the first ladder delay elapses")
	}
	if !s.IsDue(msg, now.Add(61*time.Second)) {
		t.Error("message should be due once the first ladder delay elapses")
	}
}

func TestScheduler_AttemptsExhaustedTakesPrecedence(t *testing.T) {
	s := NewScheduler(ladder, 5)
	far := time.Now().Add(-24 * time.Hour)
	msg := domain.Message{RetryCount: 5, CreatedAt: far, LastAttemptAt: &far}

	if !s.AttemptsExhausted(msg) {
		t.Fatal("retry_count == max_retries should be exhausted")
	}
}

func TestScheduler_BaseUsesLastAttemptOverCreated(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	last := time.Now().Add(-time.Minute)
	msg := domain.Message{CreatedAt: created, LastAttemptAt: &last, RetryCount: 1}

	if !msg.Base().Equal(last) {
		t.Errorf("Base() = %v, want last_attempt_at %v", msg.Base(), last)
	}
}

func TestScheduler_BaseFallsBackToCreatedAt(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	msg := domain.Message{CreatedAt: created}

	if !msg.Base().Equal(created) {
		t.Errorf("Base() = %v, want created_at %v", msg.Base(), created)
	}
}

func TestScheduler_LadderLengthsEveryRung(t *testing.T) {
	s := NewScheduler(ladder, 5)
	now := time.Now()

	for i, delay := range ladder {
		retryCount := i + 1
		last := now
		msg := domain.Message{RetryCount: retryCount, LastAttemptAt: &last}

		if s.IsDue(msg, now.Add(time.Duration(delay-1)*time.Second)) {
			t.Errorf("rung %d: should not be due 1s before delay elapses", retryCount)
		}
		if !s.IsDue(msg, now.Add(time.Duration(delay+1)*time.Second)) {
			t.Errorf("rung %d: should be due 1s after delay elapses", retryCount)
		}
	}
}

func TestScheduler_RetryCountBeyondLadderReusesLastRung(t *testing.T) {
	s := NewScheduler(ladder, 10)
	now := time.Now()
	last := now
	msg := domain.Message{RetryCount: 8, LastAttemptAt: &last}

	lastRung := time.Duration(ladder[len(ladder)-1]) * time.Second
	if s.IsDue(msg, now.Add(lastRung-time.Second)) {
		t.Error("should reuse the final ladder rung for retry counts beyond its length")
	}
	if !s.IsDue(msg, now.Add(lastRung+time.Second)) {
		t.Error("should become due once the final rung elapses")
	}
}
