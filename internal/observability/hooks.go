package observability

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Verify CLIHooks implements Hooks at compile time.
var _ Hooks = (*CLIHooks)(nil)

// sensitiveParams are query parameter names scrubbed from logged URLs.
var sensitiveParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"token":         true,
	"api_key":       true,
	"apikey":        true,
	"password":      true,
	"passwd":        true,
	"secret":        true,
	"otp":           true,
}

// CLIHooks records metrics and logs lifecycle events.
// Verbosity levels:
//   - 0: silent (collect stats only)
//   - 1: operations
//   - 2: operations and HTTP requests
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	logger    *slog.Logger
}

// NewCLIHooks creates hooks at the given verbosity level.
// A nil collector disables metrics; a nil logger disables tracing.
func NewCLIHooks(level int, collector *SessionCollector, logger *slog.Logger) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		logger:    logger,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

func (h *CLIHooks) snapshot() (int, *SessionCollector, *slog.Logger) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level, h.collector, h.logger
}

// OnOperationStart is called when a resource-level call begins.
func (h *CLIHooks) OnOperationStart(ctx context.Context, op OperationInfo) context.Context {
	level, _, logger := h.snapshot()
	if level >= 1 && logger != nil {
		logger.DebugContext(ctx, "calling "+op.String(), "id", op.ResourceID)
	}
	return ctx
}

// OnOperationEnd is called when a resource-level call completes.
func (h *CLIHooks) OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration) {
	level, collector, logger := h.snapshot()
	if collector != nil {
		collector.RecordOperation(OperationMetrics{
			Resource:   op.Resource,
			Operation:  op.Operation,
			IsMutation: op.IsMutation,
			ResourceID: op.ResourceID,
			Duration:   duration,
			Error:      err,
		})
	}
	if level < 1 || logger == nil {
		return
	}
	if err != nil {
		logger.DebugContext(ctx, "failed "+op.String(), "error", err)
		return
	}
	logger.DebugContext(ctx, "completed "+op.String(), "duration_ms", duration.Milliseconds())
}

// OnRequestStart is called before an HTTP request is sent.
func (h *CLIHooks) OnRequestStart(ctx context.Context, info RequestInfo) context.Context {
	level, _, logger := h.snapshot()
	if level >= 2 && logger != nil {
		logger.DebugContext(ctx, "request", "method", info.Method, "url", ScrubURL(info.URL), "attempt", info.Attempt)
	}
	return ctx
}

// OnRequestEnd is called after an HTTP request completes.
func (h *CLIHooks) OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult) {
	level, collector, logger := h.snapshot()
	if collector != nil {
		collector.RecordRequest(RequestMetrics{
			Method:     info.Method,
			URL:        info.URL,
			Attempt:    info.Attempt,
			StatusCode: result.StatusCode,
			Duration:   result.Duration,
			FromCache:  result.FromCache,
			Retryable:  result.Retryable,
			Error:      result.Error,
		})
	}
	if level < 2 || logger == nil {
		return
	}
	attrs := []any{
		"method", info.Method,
		"status", result.StatusCode,
		"duration_ms", result.Duration.Milliseconds(),
	}
	if result.FromCache {
		attrs = append(attrs, "cached", true)
	}
	if result.Error != nil {
		attrs = append(attrs, "error", result.Error)
	}
	logger.DebugContext(ctx, "response", attrs...)
}

// OnRetry is called before a retry attempt. Retries are logged at info so
// they show up with a single -v.
func (h *CLIHooks) OnRetry(ctx context.Context, info RequestInfo, attempt int, err error) {
	level, collector, logger := h.snapshot()
	if collector != nil {
		collector.RecordRetry()
	}
	if level >= 1 && logger != nil {
		logger.InfoContext(ctx, "retrying", "method", info.Method, "url", ScrubURL(info.URL), "attempt", attempt, "error", err)
	}
}

// ScrubURL redacts sensitive query parameters from a URL for safe logging.
// Returns a placeholder if the URL cannot be parsed.
func ScrubURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "[unparseable URL]"
	}

	query := u.Query()
	modified := false
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
			modified = true
		}
	}

	if !modified {
		return rawURL
	}

	u.RawQuery = query.Encode()
	return u.String()
}
