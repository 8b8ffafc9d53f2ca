// Package chat implements the conversation state machine and the session
// controller that drives one streaming turn at a time.
package chat

import (
	"github.com/lessonloop/lessonloop/internal/domain"
)

// ObjectiveProgress is the side-channel lesson progress counter. It is not
// part of the message list invariant.
type ObjectiveProgress struct {
	Completed   int
	Total       int
	AllComplete bool
}

// turnMark identifies the optimistic user+assistant pair of the in-flight
// turn. Both are removed together on rollback.
type turnMark struct {
	userID      string
	assistantID string
	startIndex  int
}

// State is an immutable transcript value. Reduce and friends return new
// values; snapshots handed out earlier are never mutated. One State chain
// belongs to exactly one session.
type State struct {
	messages []domain.Message
	turn     *turnMark
	progress ObjectiveProgress
}

// NewState returns an empty transcript.
func NewState() State {
	return State{}
}

// StateFromHistory seeds a transcript from previously persisted messages,
// preserving their order. Messages repeating an already-seen ID are dropped
// to keep the uniqueness invariant.
func StateFromHistory(msgs []domain.Message) State {
	seen := make(map[string]struct{}, len(msgs))
	out := make([]domain.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m.Clone())
	}
	return State{messages: out}
}

// Messages returns a snapshot copy of the transcript. Callers may hold it
// across reducer steps without seeing later mutations.
func (s State) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Progress returns the objective progress counter.
func (s State) Progress() ObjectiveProgress { return s.progress }

// InTurn reports whether an optimistic pair is awaiting completion.
func (s State) InTurn() bool { return s.turn != nil }

// Len returns the number of messages.
func (s State) Len() int { return len(s.messages) }

// BeginTurn optimistically appends the user message and an empty assistant
// placeholder. The placeholder is mutated in place by TextDelta events and
// finalized or rolled back with the user message as a pair.
func BeginTurn(s State, user, assistant domain.Message) State {
	next := s.cloneShallow()
	next.turn = &turnMark{
		userID:      user.ID,
		assistantID: assistant.ID,
		startIndex:  len(next.messages),
	}
	next.messages = append(next.messages, user, assistant)
	return next
}

// Reduce folds one event into the transcript. It never reorders or deletes
// finalized messages; defensive cases (delta with no open turn, unmatched
// tool result) are no-ops.
func Reduce(s State, ev domain.Event) State {
	switch e := ev.(type) {
	case domain.TextDelta:
		return s.updateAssistant(func(m *domain.Message) {
			m.Content += e.Text
		})

	case domain.ToolInvocation:
		return s.updateAssistant(func(m *domain.Message) {
			m.ToolCalls = append(m.ToolCalls, domain.ToolCall{
				ID:       e.ID,
				ToolName: e.Name,
				Args:     e.Args,
			})
		})

	case domain.ToolResult:
		return s.updateAssistant(func(m *domain.Message) {
			for i := range m.ToolCalls {
				if m.ToolCalls[i].ID == e.ID {
					m.ToolCalls[i].Result = e.Result
					return
				}
			}
			// No matching call: the tool_call frame may have been lost.
			// Recoverable, drop silently.
		})

	case domain.ObjectiveCompleted:
		next := s.cloneShallow()
		next.progress = ObjectiveProgress{
			Completed:   e.CompletedCount,
			Total:       e.TotalCount,
			AllComplete: e.AllComplete,
		}
		return next

	case domain.StreamComplete:
		next := s.cloneShallow()
		next.turn = nil
		return next

	case domain.StreamError:
		return Rollback(s)
	}
	return s
}

// Rollback removes the in-flight user+assistant pair, restoring the
// transcript to its pre-turn shape. A failed turn leaves no partial trace.
// Idempotent when no turn is open.
func Rollback(s State) State {
	if s.turn == nil {
		return s
	}
	next := State{
		messages: make([]domain.Message, s.turn.startIndex),
		progress: s.progress,
	}
	copy(next.messages, s.messages[:s.turn.startIndex])
	return next
}

// updateAssistant applies fn to a clone of the in-progress assistant
// message. No-op when no turn is open or the tail message is not the
// placeholder.
func (s State) updateAssistant(fn func(*domain.Message)) State {
	if s.turn == nil || len(s.messages) == 0 {
		return s
	}
	last := len(s.messages) - 1
	if s.messages[last].ID != s.turn.assistantID {
		return s
	}
	next := s.cloneShallow()
	msg := next.messages[last].Clone()
	fn(&msg)
	next.messages[last] = msg
	return next
}

// cloneShallow copies the state with a fresh message slice header so
// appends and element swaps never alias a previously returned value.
func (s State) cloneShallow() State {
	msgs := make([]domain.Message, len(s.messages))
	copy(msgs, s.messages)
	return State{messages: msgs, turn: s.turn, progress: s.progress}
}
