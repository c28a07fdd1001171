package browser

import (
	"testing"
	"time"
)

func TestCircuitBreakerClosedByDefault(t *testing.T) {
	cb := NewCircuitBreaker()
	ok, _ := cb.Allow()
	if !ok {
		t.Fatalf("expected a fresh breaker to allow acquisition")
	}
}

func TestCircuitBreakerTripsAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker()
	for i := 0; i < circuitThreshold-1; i++ {
		cb.RecordFailure()
		if status := cb.Status(); status.Open {
			t.Fatalf("breaker tripped early at failure %d", i+1)
		}
	}

	cb.RecordFailure()
	status := cb.Status()
	if !status.Open {
		t.Fatalf("expected breaker to be open after %d consecutive failures", circuitThreshold)
	}

	ok, remaining := cb.Allow()
	if ok {
		t.Fatalf("expected open breaker to reject acquisition")
	}
	if remaining <= 0 || remaining > circuitResetDelay {
		t.Fatalf("unexpected remaining cool-down: %v", remaining)
	}
}

func TestCircuitBreakerSuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	status := cb.Status()
	if status.ConsecutiveFailures != 0 {
		t.Fatalf("expected failure streak reset, got %d", status.ConsecutiveFailures)
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if status := cb.Status(); status.Open {
		t.Fatalf("breaker should not be open after only 2 failures post-reset")
	}
}

func TestCircuitBreakerReopensAfterCooldown(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.mu.Lock()
	cb.consecutiveFailures = circuitThreshold
	cb.reopenAt = time.Now().Add(-time.Millisecond)
	cb.mu.Unlock()

	ok, remaining := cb.Allow()
	if !ok || remaining != 0 {
		t.Fatalf("expected elapsed cool-down to allow acquisition, got ok=%v remaining=%v", ok, remaining)
	}
}
