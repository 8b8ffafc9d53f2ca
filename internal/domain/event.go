package domain

import "encoding/json"

// Event is a typed, application-level event derived from one protocol frame.
// Exactly one of StreamComplete or StreamError terminates a turn; the
// dispatcher never emits anything after a terminal event.
type Event interface {
	// Terminal reports whether this event ends the stream.
	Terminal() bool
}

// TextDelta appends text to the in-progress assistant message.
type TextDelta struct {
	Text string
}

// ToolInvocation records that the assistant invoked a tool.
type ToolInvocation struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolResult carries the outcome of a previously invoked tool, matched by ID.
type ToolResult struct {
	ID     string
	Result json.RawMessage
}

// ObjectiveCompleted is a side-channel progress notification. It never
// mutates message content.
type ObjectiveCompleted struct {
	ObjectiveID    string
	Text           string
	Evidence       string
	CompletedCount int
	TotalCount     int
	AllComplete    bool
}

// StreamComplete finalizes the assistant message for the turn.
type StreamComplete struct{}

// StreamError is an explicit error frame from the backend. It is terminal
// and non-retryable for the turn.
type StreamError struct {
	Detail string
}

func (TextDelta) Terminal() bool          { return false }
func (ToolInvocation) Terminal() bool     { return false }
func (ToolResult) Terminal() bool         { return false }
func (ObjectiveCompleted) Terminal() bool { return false }
func (StreamComplete) Terminal() bool     { return true }
func (StreamError) Terminal() bool        { return true }
