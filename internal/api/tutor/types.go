package tutor

import (
	"time"

	"github.com/lessonloop/lessonloop/internal/domain"
)

// TurnRequest starts one streaming chat turn within a session.
type TurnRequest struct {
	SessionID string `json:"-"`
	Content   string `json:"content"`
	Model     string `json:"model,omitempty"`
}

// HistoryMessage is one prior message as returned by the history endpoint.
type HistoryMessage struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	ToolCalls []domain.ToolCall `json:"tool_calls,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// HistoryPage is a page of prior messages, oldest first.
type HistoryPage struct {
	Messages []HistoryMessage `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// Messages converts the page into domain messages.
func (p *HistoryPage) DomainMessages() []domain.Message {
	out := make([]domain.Message, len(p.Messages))
	for i, m := range p.Messages {
		out[i] = domain.Message{
			ID:        m.ID,
			Role:      domain.Role(m.Role),
			Content:   m.Content,
			ToolCalls: m.ToolCalls,
			CreatedAt: m.CreatedAt,
		}
	}
	return out
}

// EpisodeRequest asks the backend to synthesize an audio episode for a module.
type EpisodeRequest struct {
	ModuleID string `json:"module_id"`
	Voice    string `json:"voice,omitempty"`
}

// EpisodeResponse acknowledges an accepted generation request.
type EpisodeResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is the poll payload for a background job. Phase and
// percentage are best-effort and may be absent.
type JobStatusResponse struct {
	Status     string   `json:"status"`
	Phase      string   `json:"phase,omitempty"`
	Percentage *float64 `json:"percentage,omitempty"`
	Current    int      `json:"current,omitempty"`
	Total      int      `json:"total,omitempty"`
	ArtifactID string   `json:"artifact_id,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// CancelResponse reports whether a cancellation request was accepted.
type CancelResponse struct {
	Accepted bool `json:"accepted"`
}
