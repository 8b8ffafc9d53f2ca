package domain

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes a turn or job failure.
type ErrorKind string

const (
	// ErrorKindBusy indicates a second sendMessage while one is streaming.
	// Rejected before any network call; nothing to roll back.
	ErrorKindBusy ErrorKind = "busy"

	// ErrorKindTransport indicates a network fault (refused, dropped
	// mid-stream). The turn was rolled back and may be retried.
	ErrorKindTransport ErrorKind = "transport"

	// ErrorKindStream indicates an explicit error frame from the backend.
	// Terminal for the turn, not retryable.
	ErrorKindStream ErrorKind = "stream"

	// ErrorKindCancelled indicates the caller aborted the turn.
	ErrorKindCancelled ErrorKind = "cancelled"

	// ErrorKindBudget indicates the prompt exceeded the configured token
	// budget. Rejected synchronously like a busy conflict.
	ErrorKindBudget ErrorKind = "budget"

	// ErrorKindJob indicates a job-level failure surfaced by the tracker.
	ErrorKindJob ErrorKind = "job"
)

// ErrBusy is the sentinel for busy-conflict rejections.
var ErrBusy = errors.New("a turn is already in flight")

// TurnError is the canonical failure surfaced for a chat turn or job watch.
// Message is bounded and user-safe; the wrapped cause keeps internal detail
// for logs and never reaches the transcript.
type TurnError struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
	cause     error
}

func (e *TurnError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TurnError) Unwrap() error { return e.cause }

// UserMessage returns the text safe to render inline in a transcript.
func (e *TurnError) UserMessage() string { return e.Message }

// NewTurnError creates a turn error with a user-safe message.
func NewTurnError(kind ErrorKind, message string) *TurnError {
	return &TurnError{Kind: kind, Message: message}
}

// WithCause attaches the internal cause for logging and errors.Is/As.
func (e *TurnError) WithCause(err error) *TurnError {
	e.cause = err
	return e
}

// ErrTransport wraps a network fault as a retryable turn error.
func ErrTransport(err error) *TurnError {
	return &TurnError{
		Kind:      ErrorKindTransport,
		Message:   "connection to the tutor was interrupted, please try again",
		Retryable: true,
		cause:     err,
	}
}

// ErrStream wraps an explicit error frame. Detail comes from the frame when
// present, so it is already bounded by the backend contract.
func ErrStream(detail string) *TurnError {
	if detail == "" {
		detail = "the tutor could not finish this response"
	}
	return &TurnError{Kind: ErrorKindStream, Message: detail}
}

// ErrCancelled marks a caller-initiated abort.
func ErrCancelled() *TurnError {
	return &TurnError{Kind: ErrorKindCancelled, Message: "response cancelled"}
}

// ErrBudgetExceeded rejects an oversized prompt before sending.
func ErrBudgetExceeded(estimated, budget int) *TurnError {
	return &TurnError{
		Kind:    ErrorKindBudget,
		Message: fmt.Sprintf("message too long (%d tokens, limit %d)", estimated, budget),
	}
}

// ErrJob wraps a job-level failure surfaced by the tracker.
func ErrJob(message string, retryable bool, cause error) *TurnError {
	if message == "" {
		message = "generation failed"
	}
	return &TurnError{Kind: ErrorKindJob, Message: message, Retryable: retryable, cause: cause}
}
