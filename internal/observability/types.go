// Package observability provides metrics collection and request tracing for
// CLI and TUI sessions.
package observability

import (
	"context"
	"time"
)

// RequestInfo describes an HTTP request about to be sent.
type RequestInfo struct {
	Method  string
	URL     string
	Attempt int
}

// RequestResult describes how an HTTP request ended.
type RequestResult struct {
	StatusCode int
	Duration   time.Duration
	FromCache  bool
	Retryable  bool
	Error      error
}

// OperationInfo describes a resource-level call such as listings.List.
type OperationInfo struct {
	Resource   string // e.g. "listings", "materials"
	Operation  string // e.g. "List", "Create"
	IsMutation bool
	ResourceID string
}

func (op OperationInfo) String() string {
	return op.Resource + "." + op.Operation
}

// Hooks receives request and operation lifecycle events from the API layer.
type Hooks interface {
	OnOperationStart(ctx context.Context, op OperationInfo) context.Context
	OnOperationEnd(ctx context.Context, op OperationInfo, err error, duration time.Duration)
	OnRequestStart(ctx context.Context, info RequestInfo) context.Context
	OnRequestEnd(ctx context.Context, info RequestInfo, result RequestResult)
	OnRetry(ctx context.Context, info RequestInfo, attempt int, err error)
}

// NopHooks ignores every event.
type NopHooks struct{}

func (NopHooks) OnOperationStart(ctx context.Context, _ OperationInfo) context.Context { return ctx }
func (NopHooks) OnOperationEnd(context.Context, OperationInfo, error, time.Duration)    {}
func (NopHooks) OnRequestStart(ctx context.Context, _ RequestInfo) context.Context     { return ctx }
func (NopHooks) OnRequestEnd(context.Context, RequestInfo, RequestResult)              {}
func (NopHooks) OnRetry(context.Context, RequestInfo, int, error)                      {}
