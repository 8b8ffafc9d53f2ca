package chat

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lessonloop/lessonloop/internal/api/tutor"
	"github.com/lessonloop/lessonloop/internal/domain"
	"github.com/lessonloop/lessonloop/internal/sse"
)

// fakeBackend scripts the frame stream for each StreamTurn call.
type fakeBackend struct {
	streamCalls atomic.Int32
	frames      []tutor.FrameResult
	history     []tutor.HistoryMessage
	historyErr  error

	// hold, when non-nil, delays stream completion until closed.
	hold chan struct{}
	// openErr fails StreamTurn before any frame is produced.
	openErr error
}

func (f *fakeBackend) StreamTurn(ctx context.Context, req *tutor.TurnRequest) (<-chan tutor.FrameResult, error) {
	f.streamCalls.Add(1)
	if f.openErr != nil {
		return nil, f.openErr
	}
	out := make(chan tutor.FrameResult)
	go func() {
		defer close(out)
		if f.hold != nil {
			select {
			case <-f.hold:
			case <-ctx.Done():
				return
			}
		}
		for _, fr := range f.frames {
			select {
			case out <- fr:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeBackend) History(ctx context.Context, sessionID, cursor string, limit int) (*tutor.HistoryPage, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return &tutor.HistoryPage{Messages: f.history}, nil
}

func frame(eventType, data string) tutor.FrameResult {
	return tutor.FrameResult{Frame: sse.Frame{EventType: eventType, Data: data}}
}

func newTestSession(backend *fakeBackend) *Session {
	return NewSession(SessionConfig{SessionID: "sess_1", Client: backend})
}

func TestSendMessageHappyPath(t *testing.T) {
	backend := &fakeBackend{frames: []tutor.FrameResult{
		frame("text", `{"delta":"Hel"}`),
		frame("text", `{"delta":"lo"}`),
		frame("message_complete", `{}`),
	}}
	s := newTestSession(backend)

	if err := s.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != domain.RoleUser || msgs[0].Content != "hi" {
		t.Fatalf("unexpected user message: %+v", msgs[0])
	}
	if msgs[1].Role != domain.RoleAssistant || msgs[1].Content != "Hello" {
		t.Fatalf("unexpected assistant message: %+v", msgs[1])
	}
	if s.Streaming() {
		t.Fatal("session must be idle after completion")
	}
}

func TestSendMessageBusyRejection(t *testing.T) {
	backend := &fakeBackend{
		hold:   make(chan struct{}),
		frames: []tutor.FrameResult{frame("message_complete", `{}`)},
	}
	s := newTestSession(backend)

	done := make(chan error, 1)
	go func() { done <- s.SendMessage(context.Background(), "first") }()

	// Wait for the first turn to reach the streaming state.
	deadline := time.After(2 * time.Second)
	for !s.Streaming() {
		select {
		case <-deadline:
			t.Fatal("first turn never started streaming")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	err := s.SendMessage(context.Background(), "second")
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if got := backend.streamCalls.Load(); got != 1 {
		t.Fatalf("busy rejection must not open a second stream, saw %d calls", got)
	}

	close(backend.hold)
	if err := <-done; err != nil {
		t.Fatalf("first turn failed: %v", err)
	}
}

func TestSendMessageRollsBackOnErrorFrame(t *testing.T) {
	backend := &fakeBackend{frames: []tutor.FrameResult{
		frame("text", `{"delta":"Hi"}`),
		frame("error", `{"detail":"boom"}`),
	}}
	s := newTestSession(backend)

	err := s.SendMessage(context.Background(), "hi")
	var turnErr *domain.TurnError
	if !errors.As(err, &turnErr) || turnErr.Kind != domain.ErrorKindStream {
		t.Fatalf("expected stream error, got %v", err)
	}
	if turnErr.UserMessage() != "boom" {
		t.Fatalf("expected detail from frame, got %q", turnErr.UserMessage())
	}
	if got := len(s.Messages()); got != 0 {
		t.Fatalf("rollback must leave no partial trace, found %d messages", got)
	}
}

func TestSendMessageRollsBackOnTransportFault(t *testing.T) {
	backend := &fakeBackend{frames: []tutor.FrameResult{
		frame("text", `{"delta":"Hi"}`),
		{Err: errors.New("connection reset")},
	}}
	s := newTestSession(backend)

	err := s.SendMessage(context.Background(), "hi")
	var turnErr *domain.TurnError
	if !errors.As(err, &turnErr) || turnErr.Kind != domain.ErrorKindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !turnErr.Retryable {
		t.Fatal("transport faults must be retryable")
	}
	if got := len(s.Messages()); got != 0 {
		t.Fatalf("expected full rollback, found %d messages", got)
	}
}

func TestSendMessageOpenFailure(t *testing.T) {
	backend := &fakeBackend{openErr: errors.New("connection refused")}
	s := newTestSession(backend)

	err := s.SendMessage(context.Background(), "hi")
	var turnErr *domain.TurnError
	if !errors.As(err, &turnErr) || turnErr.Kind != domain.ErrorKindTransport {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(s.Messages()) != 0 {
		t.Fatal("optimistic insert must be rolled back when the transport fails to open")
	}
}

func TestCancelRollsBackInFlightTurn(t *testing.T) {
	backend := &fakeBackend{
		hold:   make(chan struct{}),
		frames: []tutor.FrameResult{frame("message_complete", `{}`)},
	}
	s := newTestSession(backend)

	done := make(chan error, 1)
	go func() { done <- s.SendMessage(context.Background(), "hi") }()

	deadline := time.After(2 * time.Second)
	for !s.Streaming() {
		select {
		case <-deadline:
			t.Fatal("turn never started streaming")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	s.Cancel()
	err := <-done
	var turnErr *domain.TurnError
	if !errors.As(err, &turnErr) || turnErr.Kind != domain.ErrorKindCancelled {
		t.Fatalf("expected cancelled error, got %v", err)
	}
	if len(s.Messages()) != 0 {
		t.Fatal("cancel must roll back the optimistic pair")
	}

	// Idempotent when idle.
	s.Cancel()
}

func TestSeedFromHistory(t *testing.T) {
	backend := &fakeBackend{
		history: []tutor.HistoryMessage{
			{ID: "m1", Role: "user", Content: "What is osmosis?"},
			{ID: "m2", Role: "assistant", Content: "Let's work through it."},
		},
		frames: []tutor.FrameResult{
			frame("text", `{"delta":"Next step."}`),
			frame("message_complete", `{}`),
		},
	}
	s := newTestSession(backend)

	if err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed returned error: %v", err)
	}
	if got := len(s.Messages()); got != 2 {
		t.Fatalf("expected 2 seeded messages, got %d", got)
	}

	if err := s.SendMessage(context.Background(), "continue"); err != nil {
		t.Fatalf("SendMessage returned error: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 4 || msgs[3].Content != "Next step." {
		t.Fatalf("unexpected transcript after seeded turn: %+v", msgs)
	}
}

type fixedEstimator struct{ n int }

func (f fixedEstimator) Estimate(string) (int, error) { return f.n, nil }

func TestSendMessageBudgetGuard(t *testing.T) {
	backend := &fakeBackend{frames: []tutor.FrameResult{frame("message_complete", `{}`)}}
	s := NewSession(SessionConfig{
		SessionID:   "sess_1",
		Client:      backend,
		Estimator:   fixedEstimator{n: 5000},
		TokenBudget: 4096,
	})

	err := s.SendMessage(context.Background(), "very long prompt")
	var turnErr *domain.TurnError
	if !errors.As(err, &turnErr) || turnErr.Kind != domain.ErrorKindBudget {
		t.Fatalf("expected budget error, got %v", err)
	}
	if got := backend.streamCalls.Load(); got != 0 {
		t.Fatalf("budget rejection must happen before any network call, saw %d", got)
	}
	if len(s.Messages()) != 0 {
		t.Fatal("budget rejection must not insert messages")
	}
}
