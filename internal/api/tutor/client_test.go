package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lessonloop/lessonloop/internal/sse"
)

func TestStreamTurn(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/sess_1/turns" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected bearer token header, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Accept") != "text/event-stream" {
			t.Errorf("expected SSE accept header, got %q", r.Header.Get("Accept"))
		}

		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Content != "hi" {
			t.Errorf("unexpected content: %q", req.Content)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		// Split a frame across two writes to exercise decoder buffering.
		fmt.Fprint(w, "event: text\ndata: {\"del")
		flusher.Flush()
		fmt.Fprint(w, "ta\":\"Hello\"}\n\n")
		flusher.Flush()
		fmt.Fprint(w, "event: message_complete\ndata: {}\n\n")
		flusher.Flush()
	}))
	defer ts.Close()

	c := NewClient("test-token", WithBaseURL(ts.URL))
	frames, err := c.StreamTurn(context.Background(), &TurnRequest{SessionID: "sess_1", Content: "hi"})
	if err != nil {
		t.Fatalf("StreamTurn returned error: %v", err)
	}

	var got []sse.Frame
	for fr := range frames {
		if fr.Err != nil {
			t.Fatalf("unexpected stream error: %v", fr.Err)
		}
		got = append(got, fr.Frame)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 frames, got %d: %+v", len(got), got)
	}
	if got[0].EventType != "text" || got[0].Data != `{"delta":"Hello"}` {
		t.Fatalf("unexpected first frame: %+v", got[0])
	}
	if got[1].EventType != "message_complete" {
		t.Fatalf("unexpected second frame: %+v", got[1])
	}
}

func TestStreamTurnHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"session not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient("test-token", WithBaseURL(ts.URL))
	if _, err := c.StreamTurn(context.Background(), &TurnRequest{SessionID: "nope", Content: "hi"}); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestHistory(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/sessions/sess_1/messages" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("expected limit=10, got %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{
  "messages": [
    {"id": "m1", "role": "user", "content": "hello", "created_at": "2026-08-01T10:00:00Z"},
    {"id": "m2", "role": "assistant", "content": "hi there", "created_at": "2026-08-01T10:00:05Z"}
  ],
  "hasMore": true
}`)
	}))
	defer ts.Close()

	c := NewClient("test-token", WithBaseURL(ts.URL))
	page, err := c.History(context.Background(), "sess_1", "", 10)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(page.Messages) != 2 || !page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}

	msgs := page.DomainMessages()
	if msgs[0].ID != "m1" || string(msgs[1].Role) != "assistant" {
		t.Fatalf("unexpected domain messages: %+v", msgs)
	}
}

func TestCreateEpisode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/episodes" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprintln(w, `{"job_id": "job_abc"}`)
	}))
	defer ts.Close()

	c := NewClient("test-token", WithBaseURL(ts.URL))
	jobID, err := c.CreateEpisode(context.Background(), &EpisodeRequest{ModuleID: "mod_1"})
	if err != nil {
		t.Fatalf("CreateEpisode returned error: %v", err)
	}
	if jobID != "job_abc" {
		t.Fatalf("unexpected job id: %q", jobID)
	}
}

func TestJobStatusMissingFields(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"status": "processing"}`)
	}))
	defer ts.Close()

	c := NewClient("test-token", WithBaseURL(ts.URL))
	status, err := c.JobStatus(context.Background(), "job_1")
	if err != nil {
		t.Fatalf("JobStatus returned error: %v", err)
	}
	if status.Phase != "" || status.Percentage != nil {
		t.Fatalf("expected absent progress fields, got %+v", status)
	}
}
