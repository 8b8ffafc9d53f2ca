package sse

import (
	"encoding/json"
	"log/slog"

	"github.com/lessonloop/lessonloop/internal/domain"
)

// Recognized wire event types.
const (
	EventText             = "text"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventObjectiveChecked = "objective_checked"
	EventMessageComplete  = "message_complete"
	EventError            = "error"
)

// Dispatcher turns decoded frames into typed domain events. Malformed
// payloads are logged and swallowed so a single corrupt frame never aborts
// the session; unrecognized event types are ignored for forward
// compatibility.
type Dispatcher struct {
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger}
}

type textPayload struct {
	Delta string `json:"delta"`
}

type toolCallPayload struct {
	ID       string          `json:"id"`
	ToolName string          `json:"toolName"`
	Args     json.RawMessage `json:"args"`
}

type toolResultPayload struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result"`
}

type objectivePayload struct {
	ObjectiveID     string `json:"objective_id"`
	ObjectiveText   string `json:"objective_text"`
	Evidence        string `json:"evidence"`
	TotalCompleted  int    `json:"total_completed"`
	TotalObjectives int    `json:"total_objectives"`
	AllComplete     bool   `json:"all_complete"`
}

type errorPayload struct {
	Detail string `json:"detail"`
}

// Dispatch maps one frame to at most one domain event. The second return
// is false when the frame produced nothing (unknown type or malformed
// payload).
func (d *Dispatcher) Dispatch(f Frame) (domain.Event, bool) {
	switch f.EventType {
	case EventText:
		var p textPayload
		if err := json.Unmarshal([]byte(f.Data), &p); err != nil {
			d.dropMalformed(f, err)
			return nil, false
		}
		return domain.TextDelta{Text: p.Delta}, true

	case EventToolCall:
		var p toolCallPayload
		if err := json.Unmarshal([]byte(f.Data), &p); err != nil {
			d.dropMalformed(f, err)
			return nil, false
		}
		return domain.ToolInvocation{ID: p.ID, Name: p.ToolName, Args: p.Args}, true

	case EventToolResult:
		var p toolResultPayload
		if err := json.Unmarshal([]byte(f.Data), &p); err != nil {
			d.dropMalformed(f, err)
			return nil, false
		}
		return domain.ToolResult{ID: p.ID, Result: p.Result}, true

	case EventObjectiveChecked:
		var p objectivePayload
		if err := json.Unmarshal([]byte(f.Data), &p); err != nil {
			d.dropMalformed(f, err)
			return nil, false
		}
		return domain.ObjectiveCompleted{
			ObjectiveID:    p.ObjectiveID,
			Text:           p.ObjectiveText,
			Evidence:       p.Evidence,
			CompletedCount: p.TotalCompleted,
			TotalCount:     p.TotalObjectives,
			AllComplete:    p.AllComplete,
		}, true

	case EventMessageComplete:
		// Extra fields in the payload are ignored.
		return domain.StreamComplete{}, true

	case EventError:
		// An error frame is terminal regardless of payload shape.
		var p errorPayload
		if err := json.Unmarshal([]byte(f.Data), &p); err != nil || p.Detail == "" {
			return domain.StreamError{Detail: "the tutor reported an error"}, true
		}
		return domain.StreamError{Detail: p.Detail}, true

	default:
		d.logger.Debug("ignoring unrecognized event type", slog.String("event_type", f.EventType))
		return nil, false
	}
}

func (d *Dispatcher) dropMalformed(f Frame, err error) {
	d.logger.Warn("dropping malformed frame payload",
		slog.String("event_type", f.EventType),
		slog.String("error", err.Error()))
}
