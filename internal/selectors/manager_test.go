package selectors

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestNewManager_EmbeddedOnly(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}
	if len(sel.PlayButtons) == 0 {
		t.Error("expected play button selectors from embedded defaults")
	}
	if len(sel.BlockPatterns) == 0 {
		t.Error("expected block patterns from embedded defaults")
	}
}

func TestNewManager_ExternalFile(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "selectors.yaml")

	content := `
play_buttons:
  - "custom-play"
  - "another-play"
block_patterns:
  - "custom-block"
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}

	if len(sel.PlayButtons) != 2 {
		t.Errorf("expected 2 play button selectors, got %d", len(sel.PlayButtons))
	}
	if sel.PlayButtons[0] != "custom-play" {
		t.Errorf("expected 'custom-play', got %s", sel.PlayButtons[0])
	}

	// Embedded fills in fields not present in the override file.
	if sel.TelemetryPattern == "" {
		t.Error("expected embedded telemetry pattern to be used")
	}
}

func TestManager_Get_LockFree(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	const goroutines = 100
	const iterations = 1000

	done := make(chan bool)
	for i := 0; i < goroutines; i++ {
		go func() {
			for j := 0; j < iterations; j++ {
				sel := m.Get()
				if sel == nil {
					t.Error("Get() returned nil")
					return
				}
				if len(sel.PlayButtons) == 0 {
					t.Error("expected patterns")
					return
				}
			}
			done <- true
		}()
	}

	for i := 0; i < goroutines; i++ {
		<-done
	}
}

func TestManager_Reload(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "selectors.yaml")

	content := `
play_buttons:
  - "initial"
block_patterns:
  - "block"
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel.PlayButtons[0] != "initial" {
		t.Errorf("expected 'initial', got %s", sel.PlayButtons[0])
	}

	newContent := `
play_buttons:
  - "updated"
  - "another"
block_patterns:
  - "block"
`
	if err := os.WriteFile(tmpFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to update temp file: %v", err)
	}

	if err := m.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	sel = m.Get()
	if len(sel.PlayButtons) != 2 {
		t.Errorf("expected 2 play button selectors, got %d", len(sel.PlayButtons))
	}
	if sel.PlayButtons[0] != "updated" {
		t.Errorf("expected 'updated', got %s", sel.PlayButtons[0])
	}

	stats := m.Stats()
	if stats.ReloadCount != 2 {
		t.Errorf("expected ReloadCount = 2, got %d", stats.ReloadCount)
	}
	if stats.LastError != nil {
		t.Errorf("expected no error, got %v", stats.LastError)
	}
}

func TestManager_Reload_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "selectors.yaml")

	validContent := `
play_buttons:
  - "valid"
block_patterns:
  - "block"
`
	if err := os.WriteFile(tmpFile, []byte(validContent), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	invalidContent := `
play_buttons:
  - not valid yaml {{{
    incomplete:
`
	if err := os.WriteFile(tmpFile, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("failed to update temp file: %v", err)
	}

	if err := m.Reload(); err == nil {
		t.Error("expected Reload() to fail with invalid YAML")
	}

	sel := m.Get()
	if sel.PlayButtons[0] != "valid" {
		t.Errorf("expected original pattern to be preserved, got %s", sel.PlayButtons[0])
	}

	stats := m.Stats()
	if stats.LastError == nil {
		t.Error("expected LastError to be set")
	}
}

func TestManager_Reload_NoExternalPath(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	if err := m.Reload(); err == nil {
		t.Error("expected Reload() to fail when no external path is configured")
	}
}

func TestManager_HotReload(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping hot-reload test in short mode")
	}

	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "selectors.yaml")

	content := `
play_buttons:
  - "hot reload test"
block_patterns:
  - "block"
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, true)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel.PlayButtons[0] != "hot reload test" {
		t.Errorf("expected 'hot reload test', got %s", sel.PlayButtons[0])
	}

	newContent := `
play_buttons:
  - "auto reloaded"
block_patterns:
  - "block"
`
	if err := os.WriteFile(tmpFile, []byte(newContent), 0644); err != nil {
		t.Fatalf("failed to update temp file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)

	sel = m.Get()
	if sel.PlayButtons[0] != "auto reloaded" {
		t.Errorf("expected 'auto reloaded' after hot-reload, got %s", sel.PlayButtons[0])
	}
}

func TestSelectors_Validate(t *testing.T) {
	tests := []struct {
		name    string
		sel     *Selectors
		wantErr bool
	}{
		{
			name: "valid with both required fields",
			sel: &Selectors{
				PlayButtons:   []string{"video"},
				BlockPatterns: []string{"ads\\."},
			},
			wantErr: false,
		},
		{
			name:    "invalid - empty",
			sel:     &Selectors{},
			wantErr: true,
		},
		{
			name:    "invalid - missing block patterns",
			sel:     &Selectors{PlayButtons: []string{"video"}},
			wantErr: true,
		},
		{
			name:    "invalid - missing play buttons",
			sel:     &Selectors{BlockPatterns: []string{"ads\\."}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sel.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetManager(t *testing.T) {
	m := GetManager()
	if m == nil {
		t.Fatal("GetManager() returned nil")
	}
	defer m.Close()

	sel := m.Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}
	if len(sel.PlayButtons) == 0 {
		t.Error("expected play button selectors")
	}
}

func TestManager_MergeWithEmbedded(t *testing.T) {
	m, err := NewManager("", false)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	defer m.Close()

	external := &Selectors{
		PlayButtons: []string{"custom-play"},
	}

	merged := m.mergeWithEmbedded(external)

	if len(merged.PlayButtons) != 1 || merged.PlayButtons[0] != "custom-play" {
		t.Errorf("expected custom play button pattern, got %v", merged.PlayButtons)
	}

	if len(merged.BlockPatterns) == 0 {
		t.Error("expected embedded block patterns to be used")
	}
	if merged.TelemetryPattern == "" {
		t.Error("expected embedded telemetry pattern to be used")
	}
	if merged.PlayerAllowlistPattern == "" {
		t.Error("expected embedded player allowlist pattern to be used")
	}
}

func TestManager_Close(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "selectors.yaml")

	content := `play_buttons: ["video"]
block_patterns: ["ads."]`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	m, err := NewManager(tmpFile, true)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := m.Close(); err != nil {
		t.Logf("double Close() returned: %v (expected)", err)
	}
}

// ============================================================
// Remote selector fetch tests
// ============================================================

func TestManager_LoadRemote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(`
play_buttons:
  - "remote-play"
block_patterns:
  - "remote-block"
`))
	}))
	defer server.Close()

	m, err := NewManagerWithRemote("", false, server.URL, 1*time.Hour)
	if err != nil {
		t.Fatalf("NewManagerWithRemote() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}

	if len(sel.PlayButtons) != 1 || sel.PlayButtons[0] != "remote-play" {
		t.Errorf("expected 'remote-play', got %v", sel.PlayButtons)
	}

	stats := m.Stats()
	if stats.RemoteSuccesses < 1 {
		t.Errorf("expected at least 1 remote success, got %d", stats.RemoteSuccesses)
	}
}

func TestManager_RemoteTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := &Manager{
		embedded:        Get(),
		stopCh:          make(chan struct{}),
		remoteURL:       server.URL,
		refreshInterval: 1 * time.Hour,
		httpClient: &http.Client{
			Timeout: 100 * time.Millisecond,
		},
	}
	m.current.Store(m.embedded)
	defer m.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := m.loadRemote(ctx)
	if err == nil {
		t.Error("expected timeout error, got nil")
	}
}

func TestManager_RemoteMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(`
this is not valid yaml {{{
  - incomplete:
`))
	}))
	defer server.Close()

	m, err := NewManagerWithRemote("", false, server.URL, 1*time.Hour)
	if err != nil {
		t.Fatalf("NewManagerWithRemote() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}
	if len(sel.PlayButtons) == 0 {
		t.Error("expected embedded play button patterns")
	}
}

func TestManager_RemoteRefresh(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping refresh test in short mode")
	}

	callCount := 0
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		callCount++
		currentCount := callCount
		mu.Unlock()

		w.Header().Set("Content-Type", "application/yaml")
		_, _ = fmt.Fprintf(w, `
play_buttons:
  - "refresh-%d"
block_patterns:
  - "block"
`, currentCount)
	}))
	defer server.Close()

	m, err := NewManagerWithRemote("", false, server.URL, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("NewManagerWithRemote() error = %v", err)
	}
	defer m.Close()

	time.Sleep(350 * time.Millisecond)

	mu.Lock()
	finalCount := callCount
	mu.Unlock()

	if finalCount < 2 {
		t.Errorf("expected at least 2 calls, got %d", finalCount)
	}

	stats := m.Stats()
	if stats.RemoteSuccesses < 2 {
		t.Errorf("expected at least 2 remote successes, got %d", stats.RemoteSuccesses)
	}
}

func TestManager_RemoteFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	m, err := NewManagerWithRemote("", false, server.URL, 1*time.Hour)
	if err != nil {
		t.Fatalf("NewManagerWithRemote() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()
	if sel == nil {
		t.Fatal("Get() returned nil")
	}
	if len(sel.PlayButtons) == 0 {
		t.Error("expected embedded play button patterns from graceful degradation")
	}
}

func TestManager_RemoteWithFileOverride(t *testing.T) {
	tmpDir := t.TempDir()
	tmpFile := filepath.Join(tmpDir, "selectors.yaml")

	content := `
play_buttons:
  - "file-play"
block_patterns:
  - "block"
`
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write([]byte(`
play_buttons:
  - "remote-play"
block_patterns:
  - "block"
`))
	}))
	defer server.Close()

	m, err := NewManagerWithRemote(tmpFile, false, server.URL, 1*time.Hour)
	if err != nil {
		t.Fatalf("NewManagerWithRemote() error = %v", err)
	}
	defer m.Close()

	sel := m.Get()

	if len(sel.PlayButtons) != 1 || sel.PlayButtons[0] != "file-play" {
		t.Errorf("expected 'file-play' (file takes priority), got %v", sel.PlayButtons)
	}
}

func TestManager_RemoteNoURL(t *testing.T) {
	m := &Manager{
		embedded:   Get(),
		stopCh:     make(chan struct{}),
		remoteURL:  "",
		httpClient: nil,
	}
	m.current.Store(m.embedded)

	ctx := context.Background()
	_, err := m.loadRemote(ctx)
	if err == nil {
		t.Error("expected error when no remote URL configured")
	}
}

func TestManager_RemoteStats(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.Header().Set("Content-Type", "application/yaml")
			_, _ = w.Write([]byte(`play_buttons: ["video"]
block_patterns: ["ads."]`))
		} else {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	m, err := NewManagerWithRemote("", false, server.URL, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewManagerWithRemote() error = %v", err)
	}
	defer m.Close()

	time.Sleep(150 * time.Millisecond)

	stats := m.Stats()

	if stats.RemoteSuccesses < 1 {
		t.Errorf("expected at least 1 remote success, got %d", stats.RemoteSuccesses)
	}
	if stats.RemoteFailures < 1 {
		t.Errorf("expected at least 1 remote failure, got %d", stats.RemoteFailures)
	}
	if stats.LastRemoteFetch.IsZero() {
		t.Error("expected LastRemoteFetch to be set")
	}
}
