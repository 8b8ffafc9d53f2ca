// Package devserver is a stub tutoring backend implementing the wire
// contract: streaming turns over SSE, paginated history, and the episode
// job lifecycle. It exists for local development and end-to-end tests.
package devserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server is the stub backend.
type Server struct {
	Router *chi.Mux
	logger *slog.Logger

	mu       sync.Mutex
	messages map[string][]storedMessage
	jobs     map[string]*jobState
}

type storedMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// jobState is the scripted lifecycle of one episode job. Each poll
// advances it one step so tests observe every phase deterministically.
type jobState struct {
	step            int
	cancelRequested bool
}

// jobScript is the phase progression a job walks through, one entry per poll.
var jobScript = []struct {
	status string
	phase  string
	pct    float64
}{
	{"pending", "", 0},
	{"processing", "outline", 60},
	{"processing", "transcript", 30},
	{"processing", "transcript", 90},
	{"processing", "audio", 50},
	{"processing", "combining", 80},
	{"completed", "", 0},
}

// New creates the stub server.
func New(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:   logger,
		messages: make(map[string][]storedMessage),
		jobs:     make(map[string]*jobState),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/v1/sessions/{sessionID}/turns", s.handleTurn)
	r.Get("/v1/sessions/{sessionID}/messages", s.handleHistory)
	r.Post("/v1/episodes", s.handleCreateEpisode)
	r.Get("/v1/jobs/{jobID}", s.handleJobStatus)
	r.Post("/v1/jobs/{jobID}/cancel", s.handleCancelJob)

	s.Router = r
	return s
}

// Start blocks serving on the given port.
func (s *Server) Start(port int) error {
	s.logger.Info("starting stub backend", slog.Int("port", port))
	return http.ListenAndServe(fmt.Sprintf(":%d", port), s.Router)
}

// handleTurn streams a scripted tutor reply: word-by-word text deltas, a
// tool round-trip when the prompt asks for a definition, an objective
// check, then message_complete.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var req struct {
		Content string `json:"content"`
		Model   string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	writeFrame := func(eventType string, payload any) {
		data, _ := json.Marshal(payload)
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
		flusher.Flush()
	}

	reply := "Good question. Let's look at it step by step."
	if strings.Contains(strings.ToLower(req.Content), "define") {
		callID := "tc_" + uuid.NewString()[:8]
		writeFrame("tool_call", map[string]any{
			"id":       callID,
			"toolName": "lookup_definition",
			"args":     map[string]string{"term": req.Content},
		})
		writeFrame("tool_result", map[string]any{
			"id":     callID,
			"result": map[string]string{"definition": "a process of gradual change"},
		})
		reply = "Here is the definition, in plain words."
	}

	for _, word := range strings.SplitAfter(reply, " ") {
		writeFrame("text", map[string]string{"delta": word})
	}

	writeFrame("objective_checked", map[string]any{
		"objective_id":     "obj_1",
		"objective_text":   "Engage with the material",
		"evidence":         req.Content,
		"total_completed":  1,
		"total_objectives": 3,
		"all_complete":     false,
	})
	writeFrame("message_complete", map[string]any{})

	now := time.Now()
	s.mu.Lock()
	s.messages[sessionID] = append(s.messages[sessionID],
		storedMessage{ID: uuid.NewString(), Role: "user", Content: req.Content, CreatedAt: now},
		storedMessage{ID: uuid.NewString(), Role: "assistant", Content: reply, CreatedAt: now},
	)
	s.mu.Unlock()
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	s.mu.Lock()
	msgs := append([]storedMessage(nil), s.messages[sessionID]...)
	s.mu.Unlock()

	writeJSON(w, map[string]any{
		"messages": msgs,
		"hasMore":  false,
	})
}

func (s *Server) handleCreateEpisode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ModuleID == "" {
		http.Error(w, "module_id is required", http.StatusBadRequest)
		return
	}

	jobID := "job_" + uuid.NewString()[:8]
	s.mu.Lock()
	s.jobs[jobID] = &jobState{}
	s.mu.Unlock()

	s.logger.Info("episode job created",
		slog.String("job_id", jobID),
		slog.String("module_id", req.ModuleID))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"job_id": jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	if !ok {
		s.mu.Unlock()
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	step := job.step
	if step < len(jobScript)-1 {
		job.step++
	}
	cancelled := job.cancelRequested && jobScript[step].status != "completed"
	s.mu.Unlock()

	if cancelled {
		writeJSON(w, map[string]any{"status": "cancelled"})
		return
	}

	entry := jobScript[step]
	resp := map[string]any{"status": entry.status}
	if entry.phase != "" {
		resp["phase"] = entry.phase
		resp["percentage"] = entry.pct
	}
	if entry.status == "completed" {
		resp["artifact_id"] = "ep_" + jobID
	}
	writeJSON(w, resp)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	s.mu.Lock()
	job, ok := s.jobs[jobID]
	accepted := false
	if ok && job.step < len(jobScript)-1 {
		job.cancelRequested = true
		accepted = true
	}
	s.mu.Unlock()

	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]bool{"accepted": accepted})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
