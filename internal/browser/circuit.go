package browser

import (
	"sync"
	"time"

	"github.com/lumenstream/extractor/internal/metrics"
	"github.com/lumenstream/extractor/internal/types"
)

// circuitThreshold is the number of consecutive launch failures that trips
// the breaker open.
const circuitThreshold = 3

// circuitResetDelay is how long the breaker stays open before the next
// acquisition is allowed to retry.
const circuitResetDelay = 30 * time.Second

// CircuitBreaker tracks consecutive browser launch failures and fails fast
// once the failure streak crosses circuitThreshold, giving a crashing
// browser binary or exhausted host time to recover instead of being hit
// with a fresh launch attempt per request.
type CircuitBreaker struct {
	mu                 sync.Mutex
	consecutiveFailures int
	reopenAt           time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{}
}

// Allow reports whether an acquisition may proceed, and if not, how long
// until the cool-down elapses.
func (c *CircuitBreaker) Allow() (ok bool, remaining time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.reopenAt.IsZero() {
		return true, 0
	}
	remaining = time.Until(c.reopenAt)
	if remaining <= 0 {
		return true, 0
	}
	return false, remaining
}

// RecordSuccess resets the failure streak and closes the breaker.
func (c *CircuitBreaker) RecordSuccess() {
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.reopenAt = time.Time{}
	c.mu.Unlock()

	metrics.SetCircuitOpen(false)
}

// RecordFailure increments the failure streak and trips the breaker open
// once the streak reaches circuitThreshold.
func (c *CircuitBreaker) RecordFailure() {
	c.mu.Lock()
	c.consecutiveFailures++
	tripped := c.consecutiveFailures >= circuitThreshold
	if tripped {
		c.reopenAt = time.Now().Add(circuitResetDelay)
	}
	c.mu.Unlock()

	if tripped {
		metrics.SetCircuitOpen(true)
		metrics.RecordCircuitTrip()
	}
}

// Status is a point-in-time snapshot of the breaker state.
type Status struct {
	Open                bool
	ConsecutiveFailures int
	ReopenAt            time.Time
}

// Status returns a snapshot for health reporting and the watchdog.
func (c *CircuitBreaker) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	open := !c.reopenAt.IsZero() && time.Now().Before(c.reopenAt)
	return Status{
		Open:                open,
		ConsecutiveFailures: c.consecutiveFailures,
		ReopenAt:            c.reopenAt,
	}
}

// ErrCircuitOpen is returned by Allow's caller-facing wrapper when the
// breaker rejects an acquisition outright.
var ErrCircuitOpen = types.ErrCircuitOpen
