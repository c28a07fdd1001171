// Package stats tracks per-domain extraction outcome counters for operator
// visibility. It is not read back into any extraction decision.
package stats

import (
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// maxDomains is the maximum number of domains to track before LRU eviction.
const maxDomains = 10000

// evictionBatchSize is the number of domains to evict at once to reduce eviction overhead.
const evictionBatchSize = 100

// maxCounterValue bounds counters well below int64 overflow.
const maxCounterValue int64 = (1 << 62)

// DomainStats tracks extraction outcome counters for a single domain.
type DomainStats struct {
	mu sync.RWMutex

	RequestCount int64 `json:"requestCount"`
	SuccessCount int64 `json:"successCount"`
	ErrorCount   int64 `json:"errorCount"`

	totalLatencyMs int64

	LastRequestTime time.Time `json:"lastRequestTime,omitempty"`
	LastSuccessTime time.Time `json:"lastSuccessTime,omitempty"`
	LastAccess      time.Time `json:"-"` // for LRU eviction, not serialized
}

// DomainStatsJSON is the JSON-serializable representation of DomainStats.
type DomainStatsJSON struct {
	RequestCount    int64     `json:"requestCount"`
	SuccessCount    int64     `json:"successCount"`
	ErrorCount      int64     `json:"errorCount"`
	AvgLatencyMs    int64     `json:"avgLatencyMs"`
	LastRequestTime time.Time `json:"lastRequestTime,omitempty"`
	LastSuccessTime time.Time `json:"lastSuccessTime,omitempty"`
}

// ToJSON converts DomainStats to its JSON-serializable form.
func (s *DomainStats) ToJSON() DomainStatsJSON {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var avgLatency int64
	if s.RequestCount > 0 {
		avgLatency = s.totalLatencyMs / s.RequestCount
	}

	return DomainStatsJSON{
		RequestCount:    s.RequestCount,
		SuccessCount:    s.SuccessCount,
		ErrorCount:      s.ErrorCount,
		AvgLatencyMs:    avgLatency,
		LastRequestTime: s.LastRequestTime,
		LastSuccessTime: s.LastSuccessTime,
	}
}

// ErrorRate returns the error rate (0.0-1.0) for this domain.
func (s *DomainStats) ErrorRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.RequestCount == 0 {
		return 0
	}
	return float64(s.ErrorCount) / float64(s.RequestCount)
}

// Manager tracks per-domain extraction outcome counters for all domains seen.
type Manager struct {
	mu      sync.RWMutex
	domains map[string]*DomainStats

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager creates a domain stats manager and starts its background
// cleanup routine for stale entries.
func NewManager() *Manager {
	m := &Manager{
		domains: make(map[string]*DomainStats),
		stopCh:  make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupRoutine()

	return m
}

// cleanupRoutine periodically removes stale domain stats entries, preventing
// unbounded memory growth from domains that are no longer seen.
func (m *Manager) cleanupRoutine() {
	defer m.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.cleanupStale(30 * time.Minute)
		case <-m.stopCh:
			return
		}
	}
}

// cleanupStale removes domain stats that haven't been accessed recently.
func (m *Manager) cleanupStale(maxAge time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var removed int

	for domain, stats := range m.domains {
		stats.mu.RLock()
		lastAccess := stats.LastAccess
		stats.mu.RUnlock()

		if now.Sub(lastAccess) > maxAge {
			delete(m.domains, domain)
			removed++
		}
	}

	if removed > 0 {
		log.Debug().
			Int("removed", removed).
			Int("remaining", len(m.domains)).
			Msg("cleaned up stale domain stats")
	}
}

// Close stops the background cleanup routine.
func (m *Manager) Close() {
	close(m.stopCh)
	m.wg.Wait()
}

// ExtractDomain extracts the hostname from a URL.
func ExtractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}

// getOrCreate returns the stats for a domain, creating if needed, evicting
// the least-recently-accessed batch when the domain count is at capacity.
func (m *Manager) getOrCreate(domain string) *DomainStats {
	m.mu.Lock()

	stats, exists := m.domains[domain]
	if !exists {
		if len(m.domains) >= maxDomains {
			m.evictOldestBatchLocked(evictionBatchSize)
		}
		stats = &DomainStats{LastAccess: time.Now()}
		m.domains[domain] = stats
		m.mu.Unlock()
		return stats
	}

	m.mu.Unlock()

	stats.mu.Lock()
	stats.LastAccess = time.Now()
	stats.mu.Unlock()

	return stats
}

// evictOldestBatchLocked removes the N least recently accessed domains.
// Must be called with m.mu held.
func (m *Manager) evictOldestBatchLocked(count int) {
	if count <= 0 || len(m.domains) == 0 {
		return
	}

	if len(m.domains) <= count {
		for domain := range m.domains {
			delete(m.domains, domain)
		}
		return
	}

	type domainTime struct {
		domain     string
		lastAccess time.Time
	}
	candidates := make([]domainTime, 0, len(m.domains))
	for domain, stats := range m.domains {
		stats.mu.RLock()
		lastAccess := stats.LastAccess
		stats.mu.RUnlock()
		candidates = append(candidates, domainTime{domain, lastAccess})
	}

	for i := 0; i < count && i < len(candidates); i++ {
		minIdx := i
		for j := i + 1; j < len(candidates); j++ {
			if candidates[j].lastAccess.Before(candidates[minIdx].lastAccess) {
				minIdx = j
			}
		}
		if minIdx != i {
			candidates[i], candidates[minIdx] = candidates[minIdx], candidates[i]
		}
		delete(m.domains, candidates[i].domain)
	}
}

// Get returns the stats for a domain (nil if not tracked).
func (m *Manager) Get(domain string) *DomainStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.domains[domain]
}

// RecordRequest updates a domain's counters after an extraction completes.
func (m *Manager) RecordRequest(domain string, latencyMs int64, success bool, rateLimited bool) {
	if domain == "" {
		return
	}

	stats := m.getOrCreate(domain)

	stats.mu.Lock()
	defer stats.mu.Unlock()

	if stats.RequestCount >= maxCounterValue {
		log.Warn().
			Str("domain", domain).
			Int64("request_count", stats.RequestCount).
			Msg("counter overflow protection triggered, resetting stats")
		stats.RequestCount = 0
		stats.SuccessCount = 0
		stats.ErrorCount = 0
		stats.totalLatencyMs = 0
		stats.LastRequestTime = time.Time{}
		stats.LastSuccessTime = time.Time{}
	}

	stats.RequestCount++
	if stats.totalLatencyMs < maxCounterValue-latencyMs {
		stats.totalLatencyMs += latencyMs
	}
	stats.LastRequestTime = time.Now()

	if success {
		stats.SuccessCount++
		stats.LastSuccessTime = time.Now()
	} else {
		stats.ErrorCount++
	}
}

// ErrorRate returns the error rate for a domain.
func (m *Manager) ErrorRate(domain string) float64 {
	stats := m.Get(domain)
	if stats == nil {
		return 0
	}
	return stats.ErrorRate()
}

// RequestCount returns the request count for a domain.
func (m *Manager) RequestCount(domain string) int64 {
	stats := m.Get(domain)
	if stats == nil {
		return 0
	}
	stats.mu.RLock()
	defer stats.mu.RUnlock()
	return stats.RequestCount
}

// AllStats returns a copy of all domain statistics.
func (m *Manager) AllStats() map[string]DomainStatsJSON {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]DomainStatsJSON, len(m.domains))
	for domain, stats := range m.domains {
		result[domain] = stats.ToJSON()
	}
	return result
}

// DomainCount returns the number of tracked domains.
func (m *Manager) DomainCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.domains)
}
