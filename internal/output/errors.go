package output

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// GenericFailureMessage is shown when the server gives no usable reason.
const GenericFailureMessage = "Something went wrong, please try again"

// Error is a failure the CLI can report: a code that picks the exit
// status, the message to show, and an optional next step.
type Error struct {
	Code       string
	Message    string
	Hint       string
	HTTPStatus int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.Hint == "" {
		return e.Message
	}
	return e.Message + ": " + e.Hint
}

func (e *Error) Unwrap() error { return e.Cause }

// ExitCode returns the process exit status for e.
func (e *Error) ExitCode() int { return ExitCodeFor(e.Code) }

func ErrUsage(msg string) *Error {
	return &Error{Code: CodeUsage, Message: msg}
}

func ErrUsageHint(msg, hint string) *Error {
	return &Error{Code: CodeUsage, Message: msg, Hint: hint}
}

// ErrNotFound reports a missing marketplace record, e.g. "Listing not found: 42".
func ErrNotFound(resource, id string) *Error {
	return &Error{Code: CodeNotFound, Message: resource + " not found: " + id, HTTPStatus: http.StatusNotFound}
}

// ErrAuth points the user at auth login; the server message is kept.
func ErrAuth(msg string) *Error {
	return &Error{
		Code:       CodeAuth,
		Message:    msg,
		Hint:       "Run: market auth login --token <token>",
		HTTPStatus: http.StatusUnauthorized,
	}
}

func ErrForbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg, HTTPStatus: http.StatusForbidden}
}

// ErrRateLimit builds a retryable 429. retryAfter is in seconds, 0 if the
// server sent none.
func ErrRateLimit(retryAfter int) *Error {
	e := &Error{
		Code:       CodeRateLimit,
		Message:    "Rate limited",
		Hint:       "Try again later",
		HTTPStatus: http.StatusTooManyRequests,
		Retryable:  true,
	}
	if retryAfter > 0 {
		e.Hint = fmt.Sprintf("Try again in %d seconds", retryAfter)
	}
	return e
}

// ErrNetwork wraps a transport failure; the cause text becomes the hint.
func ErrNetwork(cause error) *Error {
	return &Error{Code: CodeNetwork, Message: "Network error", Hint: cause.Error(), Retryable: true, Cause: cause}
}

func ErrAPI(status int, msg string) *Error {
	return &Error{Code: CodeAPI, Message: msg, HTTPStatus: status}
}

// ErrValidation carries the server's reason for rejecting a payload.
func ErrValidation(status int, msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg, HTTPStatus: status}
}

// AsError finds the *Error in err's chain. Cancellation counts as a
// network failure; anything else is reported as an API error.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrNetwork(err)
	default:
		return &Error{Code: CodeAPI, Message: err.Error(), Cause: err}
	}
}

// UserMessage is what a toast or notice shows for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if e := AsError(err); e.Message != "" {
		return e.Error()
	}
	return GenericFailureMessage
}
