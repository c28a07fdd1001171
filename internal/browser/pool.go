// Package browser manages the lazy-singleton browser handle the
// extraction pipeline runs against: a single browser process, launched on
// first demand, relaunched cooperatively across concurrent callers, and
// restarted on an idle timer or once it grows too old.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lumenstream/extractor/internal/config"
	"github.com/lumenstream/extractor/internal/driver"
	"github.com/lumenstream/extractor/internal/metrics"
	"github.com/lumenstream/extractor/internal/types"
)

// AcquireContextFunc is handed to an admitted task; calling it launches
// the browser if necessary and returns a fresh isolated context.
type AcquireContextFunc func(ctx context.Context, opts driver.ContextOptions) (driver.Context, error)

// Task is the unit of work admitted by the Pool. acquire triggers the lazy
// browser launch on first call.
type Task func(ctx context.Context, acquire AcquireContextFunc) (any, error)

// launchFuture lets concurrent callers await a single in-flight launch
// rather than each starting their own.
type launchFuture struct {
	done   chan struct{}
	handle driver.Handle
	err    error
}

// Pool admits up to cfg.MaxConcurrent tasks at a time and owns the single
// lazily-launched browser handle they share.
//
// Lock ordering: mu guards all fields below; it is never held across a
// driver call (launch, context creation, or task execution).
type Pool struct {
	cfg      *config.Config
	launcher driver.Launcher
	circuit  *CircuitBreaker

	mu          sync.Mutex
	handle      driver.Handle
	handleSince time.Time
	launching   *launchFuture
	active      int
	queue       *admissionQueue
	seq         int64
	idleTimer   *time.Timer
	closed      bool
}

// New creates a pool bound to launcher. The browser is not started here;
// the first Submit call triggers the first launch.
func New(cfg *config.Config, launcher driver.Launcher) *Pool {
	return &Pool{
		cfg:      cfg,
		launcher: launcher,
		circuit:  NewCircuitBreaker(),
		queue:    newAdmissionQueue(),
	}
}

// Submit schedules task under the concurrency bound and blocks until it is
// admitted and runs to completion. priority follows types.PriorityWeight*;
// higher values run first, ties break FIFO.
func (p *Pool) Submit(ctx context.Context, priority int, task Task) (any, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, types.ErrContextCanceled
	}

	p.seq++
	t := &ticket{priority: priority, seq: p.seq, admitted: make(chan struct{})}
	p.queue.push(t)
	enqueueTime := time.Now()
	p.dispatchLocked()
	p.mu.Unlock()

	select {
	case <-t.admitted:
		if t.rejected {
			return nil, types.ErrContextCanceled
		}
	case <-ctx.Done():
		p.mu.Lock()
		p.queue.remove(t)
		metrics.UpdateQueueMetrics(p.queue.len(), p.active)
		p.mu.Unlock()
		return nil, ctx.Err()
	}

	metrics.RecordQueueWait(time.Since(enqueueTime))

	defer func() {
		p.mu.Lock()
		p.active--
		p.dispatchLocked()
		if p.active == 0 {
			p.scheduleIdleTimerLocked()
		}
		p.mu.Unlock()
	}()

	acquire := func(ctx context.Context, opts driver.ContextOptions) (driver.Context, error) {
		start := time.Now()
		handle, err := p.ensureHandle(ctx)
		if err != nil {
			return nil, err
		}
		ctxHandle, err := handle.NewContext(ctx, opts)
		if err == nil {
			metrics.RecordContextCreation(time.Since(start))
		}
		return ctxHandle, err
	}

	return task(ctx, acquire)
}

// dispatchLocked admits as many queued tickets as the concurrency bound
// allows. Callers must hold mu.
func (p *Pool) dispatchLocked() {
	for p.active < p.cfg.MaxConcurrent {
		t := p.queue.pop()
		if t == nil {
			break
		}
		p.active++
		if p.idleTimer != nil {
			p.idleTimer.Stop()
			p.idleTimer = nil
		}
		close(t.admitted)
	}
	metrics.UpdateQueueMetrics(p.queue.len(), p.active)
}

// scheduleIdleTimerLocked arms a one-shot restart timer for when the pool
// has gone idle. Callers must hold mu.
func (p *Pool) scheduleIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
	}
	p.idleTimer = time.AfterFunc(p.cfg.BrowserIdleTimeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.active != 0 || p.handle == nil {
			return
		}
		log.Info().Msg("browser idle, restarting")
		p.restartLocked("idle")
	})
}

// ensureHandle implements the relaunch discipline in full: reuse a live,
// non-stale handle; await an in-flight launch; otherwise launch fresh.
func (p *Pool) ensureHandle(ctx context.Context) (driver.Handle, error) {
	if ok, remaining := p.circuit.Allow(); !ok {
		return nil, types.NewCircuitOpenError(remaining.Round(time.Second).String())
	}

	p.mu.Lock()

	if p.closed {
		p.mu.Unlock()
		return nil, types.ErrContextCanceled
	}

	if p.handle != nil {
		if !p.handle.IsConnected() {
			p.handle = nil
		} else {
			age := time.Since(p.handleSince)
			if age <= p.cfg.BrowserMaxAge || p.active > 1 {
				h := p.handle
				p.mu.Unlock()
				return h, nil
			}
			log.Info().Dur("age", age).Msg("browser past max age, restarting")
			p.restartLocked("max_age")
		}
	}

	if p.launching != nil {
		fut := p.launching
		p.mu.Unlock()
		select {
		case <-fut.done:
			return fut.handle, fut.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fut := &launchFuture{done: make(chan struct{})}
	p.launching = fut
	p.mu.Unlock()

	handle, err := p.doLaunch(ctx)

	fut.handle = handle
	fut.err = err
	close(fut.done)

	p.mu.Lock()
	p.launching = nil
	if err == nil {
		p.handle = handle
		p.handleSince = time.Now()
		registeredHandle := handle
		handle.OnDisconnected(func() {
			p.mu.Lock()
			if p.handle == registeredHandle {
				p.handle = nil
			}
			p.mu.Unlock()
			metrics.RecordBrowserDisconnect()
			log.Warn().Msg("browser disconnected unexpectedly")
		})
	}
	p.mu.Unlock()

	return handle, err
}

// restartLocked implements the restart protocol: null the reference first,
// close the old handle in the background with errors swallowed, and never
// eagerly relaunch. Callers must hold mu.
func (p *Pool) restartLocked(reason string) {
	old := p.handle
	p.handle = nil
	metrics.RecordBrowserRestart(reason)

	go func() {
		if old == nil {
			return
		}
		if err := old.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing browser during restart")
		}
	}()
}

// doLaunch performs the actual launch and records circuit/metric outcomes.
// It must not be called while mu is held.
func (p *Pool) doLaunch(ctx context.Context) (driver.Handle, error) {
	log.Info().Msg("launching browser")

	handle, err := p.launcher.Launch(ctx, driver.LaunchOptions{
		BinPath:  p.cfg.ChromePath,
		Headless: true,
	})

	metrics.RecordBrowserLaunch(err == nil)

	if err != nil {
		p.circuit.RecordFailure()
		return nil, types.NewBrowserError("launch failed", fmt.Errorf("%w: %v", types.ErrBrowserLaunchFailed, err))
	}

	p.circuit.RecordSuccess()
	return handle, nil
}

// PoolStatus is a point-in-time snapshot for health reporting and the
// watchdog.
type PoolStatus struct {
	CircuitOpen         bool
	ConsecutiveFailures int
	ReopenAt            time.Time
	Pending             int
	Active              int
}

// Status returns a snapshot of breaker and queue state.
func (p *Pool) Status() PoolStatus {
	cb := p.circuit.Status()

	p.mu.Lock()
	pending := p.queue.len()
	active := p.active
	p.mu.Unlock()

	return PoolStatus{
		CircuitOpen:         cb.Open,
		ConsecutiveFailures: cb.ConsecutiveFailures,
		ReopenAt:            cb.ReopenAt,
		Pending:             pending,
		Active:              active,
	}
}

// Shutdown drains the queue, releases timers, and closes the browser if
// live. It does not wait for in-flight tasks; callers coordinate draining
// via the HTTP server's own graceful shutdown.
func (p *Pool) Shutdown() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	for {
		t := p.queue.pop()
		if t == nil {
			break
		}
		t.rejected = true
		close(t.admitted)
	}

	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}

	handle := p.handle
	p.handle = nil
	p.mu.Unlock()

	if handle == nil {
		return nil
	}
	return handle.Close()
}
