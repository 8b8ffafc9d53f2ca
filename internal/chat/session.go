package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lessonloop/lessonloop/internal/api/tutor"
	"github.com/lessonloop/lessonloop/internal/domain"
	"github.com/lessonloop/lessonloop/internal/sse"
	"github.com/lessonloop/lessonloop/internal/storage"
)

// historyPageSize is the page size used when seeding from the backend.
const historyPageSize = 50

// BackendClient is the slice of the tutor API the session depends on.
type BackendClient interface {
	StreamTurn(ctx context.Context, req *tutor.TurnRequest) (<-chan tutor.FrameResult, error)
	History(ctx context.Context, sessionID, cursor string, limit int) (*tutor.HistoryPage, error)
}

// TokenEstimator estimates the token footprint of a prompt before sending.
type TokenEstimator interface {
	Estimate(text string) (int, error)
}

// SessionConfig configures a chat session.
type SessionConfig struct {
	SessionID string
	Client    BackendClient
	Model     string

	// Estimator and TokenBudget enable the pre-send prompt budget guard.
	// Zero budget disables the check.
	Estimator   TokenEstimator
	TokenBudget int

	// Store, when set, receives finalized turns best-effort.
	Store storage.TranscriptStore

	Logger *slog.Logger
}

// Session drives one conversation: it owns the reducer state for its
// transcript and permits at most one in-flight turn. All mutations funnel
// through the reducer under the session mutex.
type Session struct {
	cfg        SessionConfig
	logger     *slog.Logger
	dispatcher *sse.Dispatcher

	mu        sync.Mutex
	state     State
	streaming bool
	abort     context.CancelFunc
}

// NewSession creates a session with an empty transcript.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:        cfg,
		logger:     logger.With(slog.String("session_id", cfg.SessionID)),
		dispatcher: sse.NewDispatcher(logger),
		state:      NewState(),
	}
}

// Seed loads prior messages from the backend history endpoint (and falls
// back to the local transcript cache) to initialize the reducer state.
// Must be called before the first turn.
func (s *Session) Seed(ctx context.Context) error {
	page, err := s.cfg.Client.History(ctx, s.cfg.SessionID, "", historyPageSize)
	if err != nil {
		if s.cfg.Store != nil {
			cached, cacheErr := s.cfg.Store.LoadMessages(ctx, s.cfg.SessionID, historyPageSize)
			if cacheErr == nil {
				s.logger.Warn("seeding from local cache, history endpoint unavailable",
					slog.String("error", err.Error()))
				s.setState(StateFromHistory(cached))
				return nil
			}
		}
		return domain.ErrTransport(err)
	}

	msgs := page.DomainMessages()
	for page.HasMore {
		if len(msgs) == 0 {
			break
		}
		page, err = s.cfg.Client.History(ctx, s.cfg.SessionID, msgs[len(msgs)-1].ID, historyPageSize)
		if err != nil {
			return domain.ErrTransport(err)
		}
		msgs = append(msgs, page.DomainMessages()...)
	}

	s.setState(StateFromHistory(msgs))
	return nil
}

// TurnOption adjusts one SendMessage call.
type TurnOption func(*tutor.TurnRequest)

// WithModel overrides the model for a single turn.
func WithModel(model string) TurnOption {
	return func(r *tutor.TurnRequest) { r.Model = model }
}

// SendMessage runs one full turn: optimistic insert, stream, reduce,
// finalize. It blocks until the turn completes, fails, or is cancelled.
// A second call while one is streaming fails immediately with
// domain.ErrBusy and starts no transport read.
func (s *Session) SendMessage(ctx context.Context, content string, opts ...TurnOption) error {
	req := &tutor.TurnRequest{
		SessionID: s.cfg.SessionID,
		Content:   content,
		Model:     s.cfg.Model,
	}
	for _, opt := range opts {
		opt(req)
	}

	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return domain.NewTurnError(domain.ErrorKindBusy, "please wait for the current response to finish").
			WithCause(domain.ErrBusy)
	}

	if err := s.checkBudget(content); err != nil {
		s.mu.Unlock()
		return err
	}

	now := time.Now()
	user := domain.Message{ID: uuid.NewString(), Role: domain.RoleUser, Content: content, CreatedAt: now}
	assistant := domain.Message{ID: uuid.NewString(), Role: domain.RoleAssistant, CreatedAt: now}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.streaming = true
	s.abort = cancel
	s.state = BeginTurn(s.state, user, assistant)
	s.mu.Unlock()

	err := s.runTurn(turnCtx, req)

	s.mu.Lock()
	s.streaming = false
	s.abort = nil
	s.mu.Unlock()

	return err
}

// runTurn drives decoder, dispatcher, and reducer for one open stream.
// Frames are processed strictly in arrival order; cancellation takes
// effect at the next chunk boundary.
func (s *Session) runTurn(ctx context.Context, req *tutor.TurnRequest) error {
	frames, err := s.cfg.Client.StreamTurn(ctx, req)
	if err != nil {
		s.rollback()
		s.logger.Warn("turn transport open failed", slog.String("error", err.Error()))
		return domain.ErrTransport(err)
	}

	for fr := range frames {
		if fr.Err != nil {
			s.rollback()
			s.logger.Warn("turn stream failed", slog.String("error", fr.Err.Error()))
			return domain.ErrTransport(fr.Err)
		}

		ev, ok := s.dispatcher.Dispatch(fr.Frame)
		if !ok {
			continue
		}

		s.mu.Lock()
		s.state = Reduce(s.state, ev)
		s.mu.Unlock()

		switch e := ev.(type) {
		case domain.StreamComplete:
			s.persistTurn(ctx)
			return nil
		case domain.StreamError:
			// The reducer already rolled the pair back.
			s.logger.Info("turn ended with stream error", slog.String("detail", e.Detail))
			return domain.ErrStream(e.Detail)
		}
	}

	// Stream closed with no terminal event.
	s.rollback()
	if ctx.Err() != nil {
		s.logger.Info("turn cancelled")
		return domain.ErrCancelled()
	}
	s.logger.Warn("stream ended without terminal event")
	return domain.ErrTransport(io.ErrUnexpectedEOF)
}

// Cancel aborts the in-flight turn, if any. The read loop stops at the
// next chunk boundary and the turn rolls back. Idempotent when idle.
func (s *Session) Cancel() {
	s.mu.Lock()
	abort := s.abort
	s.mu.Unlock()
	if abort != nil {
		abort()
	}
}

// Messages returns a read-only snapshot of the transcript.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Messages()
}

// Progress returns the current objective progress counter.
func (s *Session) Progress() ObjectiveProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Progress()
}

// Streaming reports whether a turn is in flight.
func (s *Session) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) rollback() {
	s.mu.Lock()
	s.state = Rollback(s.state)
	s.mu.Unlock()
}

// checkBudget estimates the prompt footprint (transcript plus the new
// message) and rejects oversized turns before any network call. Estimator
// failures degrade to allowing the turn.
func (s *Session) checkBudget(content string) error {
	if s.cfg.Estimator == nil || s.cfg.TokenBudget <= 0 {
		return nil
	}
	var prompt string
	for _, m := range s.state.Messages() {
		prompt += m.Content + "\n"
	}
	prompt += content

	estimated, err := s.cfg.Estimator.Estimate(prompt)
	if err != nil {
		s.logger.Warn("token estimate failed, allowing turn", slog.String("error", err.Error()))
		return nil
	}
	s.logger.Debug("prompt token estimate", slog.Int("tokens", estimated))
	if estimated > s.cfg.TokenBudget {
		return domain.ErrBudgetExceeded(estimated, s.cfg.TokenBudget)
	}
	return nil
}

// persistTurn writes the finalized pair to the local transcript cache.
// Best-effort: a failed write logs and never fails the turn.
func (s *Session) persistTurn(ctx context.Context) {
	if s.cfg.Store == nil {
		return
	}
	s.mu.Lock()
	msgs := s.state.Messages()
	s.mu.Unlock()
	if len(msgs) < 2 {
		return
	}
	if err := s.cfg.Store.SaveMessages(ctx, s.cfg.SessionID, msgs[len(msgs)-2:]); err != nil {
		s.logger.Warn("failed to cache finalized turn", slog.String("error", err.Error()))
	}
}
