package browser

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumenstream/extractor/internal/driver/drivertest"
)

func TestWatchdogExitsWhenCircuitStuckOpen(t *testing.T) {
	var exitCode atomic.Int32
	var exited atomic.Bool
	orig := exitFunc
	exitFunc = func(code int) {
		exited.Store(true)
		exitCode.Store(int32(code))
	}
	defer func() { exitFunc = orig }()

	launcher := &drivertest.Launcher{LaunchErr: context.DeadlineExceeded}
	pool := New(testConfig(), launcher)
	for i := 0; i < circuitThreshold; i++ {
		_, _ = pool.Submit(context.Background(), 0, noopTask)
	}
	if !pool.Status().CircuitOpen {
		t.Fatalf("expected circuit to be open")
	}

	wd := NewWatchdog(pool, 30*time.Millisecond)
	wd.tick() // records openSince
	time.Sleep(40 * time.Millisecond)
	wd.tick() // should exceed threshold now

	if !exited.Load() {
		t.Fatalf("expected watchdog to call exitFunc")
	}
	if exitCode.Load() != 1 {
		t.Fatalf("expected exit code 1, got %d", exitCode.Load())
	}
}

func TestWatchdogDisabledDuringShutdown(t *testing.T) {
	var exited atomic.Bool
	orig := exitFunc
	exitFunc = func(code int) { exited.Store(true) }
	defer func() { exitFunc = orig }()

	launcher := &drivertest.Launcher{LaunchErr: context.DeadlineExceeded}
	pool := New(testConfig(), launcher)
	for i := 0; i < circuitThreshold; i++ {
		_, _ = pool.Submit(context.Background(), 0, noopTask)
	}

	wd := NewWatchdog(pool, 10*time.Millisecond)
	wd.Disable()
	wd.tick()
	time.Sleep(20 * time.Millisecond)
	wd.tick()

	if exited.Load() {
		t.Fatalf("expected disabled watchdog to never call exitFunc")
	}
}

func TestWatchdogClearsOpenSinceWhenClosed(t *testing.T) {
	pool := New(testConfig(), &drivertest.Launcher{})
	wd := NewWatchdog(pool, time.Second)
	wd.openSince = time.Now().Add(-time.Hour)
	wd.tick()
	if !wd.openSince.IsZero() {
		t.Fatalf("expected openSince to clear when circuit is closed")
	}
}
