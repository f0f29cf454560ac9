package observability

import (
	"fmt"
	"sync"
	"time"
)

// RequestMetrics holds timing and status information for a single HTTP request.
type RequestMetrics struct {
	Method     string
	URL        string
	Attempt    int
	StatusCode int
	Duration   time.Duration
	FromCache  bool
	Retryable  bool
	Error      error
}

// OperationMetrics holds timing information for a resource-level call.
type OperationMetrics struct {
	Resource   string
	Operation  string
	IsMutation bool
	ResourceID string
	Duration   time.Duration
	Error      error
}

// SessionMetrics aggregates metrics for an entire session.
type SessionMetrics struct {
	StartTime       time.Time
	EndTime         time.Time
	TotalRequests   int
	CacheHits       int
	CacheMisses     int
	TotalOperations int
	FailedOps       int
	Mutations       int
	TotalRetries    int
	PagesFetched    int
	FailedPages     int
	TotalLatency    time.Duration
}

// String renders the one-line form printed by --stats.
func (m SessionMetrics) String() string {
	s := fmt.Sprintf("%d requests", m.TotalRequests)
	if m.CacheHits > 0 {
		s += fmt.Sprintf(" (%d cached)", m.CacheHits)
	}
	if m.PagesFetched > 0 {
		s += fmt.Sprintf(", %d pages", m.PagesFetched)
	}
	if m.TotalRetries > 0 {
		s += fmt.Sprintf(", %d retries", m.TotalRetries)
	}
	if m.FailedOps > 0 {
		s += fmt.Sprintf(", %d failed", m.FailedOps)
	}
	s += fmt.Sprintf(", %dms", m.TotalLatency.Milliseconds())
	return s
}

// SessionCollector accumulates metrics across a session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime       time.Time
	totalRequests   int
	cacheHits       int
	cacheMisses     int
	totalOperations int
	failedOps       int
	mutations       int
	totalRetries    int
	pagesFetched    int
	failedPages     int
	totalLatency    time.Duration
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordRequest records metrics for an HTTP request.
func (c *SessionCollector) RecordRequest(m RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRequests++
	c.totalLatency += m.Duration
	if m.FromCache {
		c.cacheHits++
	} else {
		c.cacheMisses++
	}
}

// RecordOperation records metrics for a resource-level call.
func (c *SessionCollector) RecordOperation(m OperationMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalOperations++
	if m.IsMutation {
		c.mutations++
	}
	if m.Error != nil {
		c.failedOps++
	}
}

// RecordRetry records a retry event.
func (c *SessionCollector) RecordRetry() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalRetries++
}

// RecordPage records a completed page fetch from a synchronizer. Its
// signature matches data.FetchObserver.
func (c *SessionCollector) RecordPage(_ string, _ int, _ int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pagesFetched++
	if err != nil {
		c.failedPages++
	}
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:       c.startTime,
		EndTime:         time.Now(),
		TotalRequests:   c.totalRequests,
		CacheHits:       c.cacheHits,
		CacheMisses:     c.cacheMisses,
		TotalOperations: c.totalOperations,
		FailedOps:       c.failedOps,
		Mutations:       c.mutations,
		TotalRetries:    c.totalRetries,
		PagesFetched:    c.pagesFetched,
		FailedPages:     c.failedPages,
		TotalLatency:    c.totalLatency,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalRequests = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.totalOperations = 0
	c.failedOps = 0
	c.mutations = 0
	c.totalRetries = 0
	c.pagesFetched = 0
	c.failedPages = 0
	c.totalLatency = 0
}
