package browser

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// watchdogInterval is the poll period for checking breaker health.
const watchdogInterval = 10 * time.Second

// exitFunc is os.Exit by default, overridable in tests.
var exitFunc = os.Exit

// Watchdog terminates the process if the circuit breaker stays open for
// longer than its exit threshold, on the assumption that a supervisor
// (systemd, Kubernetes) will restart the container into a clean browser
// and host state. It is the only component permitted to do so.
type Watchdog struct {
	pool          *Pool
	exitThreshold time.Duration

	mu        sync.Mutex
	openSince time.Time
	disabled  bool
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewWatchdog returns a watchdog polling pool's circuit status.
func NewWatchdog(pool *Pool, exitThreshold time.Duration) *Watchdog {
	return &Watchdog{
		pool:          pool,
		exitThreshold: exitThreshold,
		stopCh:        make(chan struct{}),
	}
}

// Run blocks, polling until Stop is called. Run it in its own goroutine.
func (w *Watchdog) Run() {
	ticker := time.NewTicker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick()
		}
	}
}

func (w *Watchdog) tick() {
	w.mu.Lock()
	if w.disabled {
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()

	status := w.pool.Status()

	w.mu.Lock()
	defer w.mu.Unlock()

	if !status.CircuitOpen {
		w.openSince = time.Time{}
		return
	}

	if w.openSince.IsZero() {
		w.openSince = time.Now()
		log.Warn().Msg("circuit breaker opened, watchdog tracking")
		return
	}

	elapsed := time.Since(w.openSince)
	if elapsed >= w.exitThreshold {
		log.Error().
			Dur("open_for", elapsed).
			Msg("circuit breaker stuck open past exit threshold, exiting for supervisor restart")
		exitFunc(1)
	}
}

// Disable permanently stops the watchdog from exiting the process. Call
// this before a graceful shutdown so the supervisor's own restart cycle
// isn't raced by the watchdog.
func (w *Watchdog) Disable() {
	w.mu.Lock()
	w.disabled = true
	w.mu.Unlock()
}

// Stop halts the polling loop.
func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}
