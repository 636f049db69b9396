package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dreamup/answer-agent/internal/flow"
	"github.com/dreamup/answer-agent/internal/reporter"
	"github.com/dreamup/answer-agent/internal/session"
)

// Runner is a started answering session
type Runner interface {
	Run(ctx context.Context) (*session.Outcome, error)
	Stop()
	Summary() reporter.Summary
}

// StartFunc launches a session. onCapture receives every question image.
type StartFunc func(ctx context.Context, req StartRequest, onCapture func(flow.Captured)) (Runner, error)

// StartRequest optionally overrides the configured session
type StartRequest struct {
	URL           string `json:"url,omitempty"`
	MaxIterations *int   `json:"maxIterations,omitempty"`
}

// SessionStatus is returned by GET /api/session
type SessionStatus struct {
	State      string            `json:"state"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
	Summary    *reporter.Summary `json:"summary,omitempty"`
	Error      string            `json:"error,omitempty"`
	ReportPath string            `json:"reportPath,omitempty"`
	ReportURL  string            `json:"reportUrl,omitempty"`
}

// Server is the HTTP control shell around a single session. The loop runs
// on its own goroutine, never on a request goroutine.
type Server struct {
	start  StartFunc
	logs   *LogBuffer
	logger *slog.Logger
	// ctx bounds running sessions; it is cancelled on shutdown
	ctx context.Context

	mu         sync.RWMutex
	state      string
	runner     Runner
	stopAsked  bool
	startedAt  time.Time
	finishedAt time.Time
	lastErr    error
	outcome    *session.Outcome
	image      []byte
	imageAt    time.Time
	done       chan struct{}
}

func NewServer(ctx context.Context, start StartFunc, logs *LogBuffer, logger *slog.Logger) *Server {
	return &Server{
		start:  start,
		logs:   logs,
		logger: logger,
		ctx:    ctx,
		state:  string(flow.StateIdle),
	}
}

// Routes registers every endpoint
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	mux.HandleFunc("/api/session/start", s.corsMiddleware(s.handleStart))
	mux.HandleFunc("/api/session/stop", s.corsMiddleware(s.handleStop))
	mux.HandleFunc("/api/session", s.corsMiddleware(s.handleStatus))
	mux.HandleFunc("/api/logs", s.corsMiddleware(s.handleLogs))
	mux.HandleFunc("/api/question-image", s.corsMiddleware(s.handleQuestionImage))
	return mux
}

// CORS middleware
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"version": version,
		"time":    time.Now(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req StartRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("Invalid request: %v", err), http.StatusBadRequest)
			return
		}
	}
	if req.MaxIterations != nil && *req.MaxIterations < 0 {
		http.Error(w, "maxIterations must not be negative", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.state == string(flow.StateRunning) {
		s.mu.Unlock()
		http.Error(w, flow.ErrAlreadyRunning.Error(), http.StatusConflict)
		return
	}
	s.state = string(flow.StateRunning)
	s.runner = nil
	s.stopAsked = false
	s.startedAt = time.Now()
	s.finishedAt = time.Time{}
	s.lastErr = nil
	s.outcome = nil
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go s.execute(req, done)

	writeJSON(w, http.StatusAccepted, map[string]string{"state": string(flow.StateRunning)})
}

// execute starts and runs one session in the background
func (s *Server) execute(req StartRequest, done chan struct{}) {
	defer close(done)

	runner, err := s.start(s.ctx, req, s.setImage)
	if err != nil {
		s.logger.Error("failed to start session", "error", err)
		s.finish(nil, err)
		return
	}

	s.mu.Lock()
	s.runner = runner
	stopAsked := s.stopAsked
	s.mu.Unlock()
	if stopAsked {
		runner.Stop()
	}

	outcome, err := runner.Run(s.ctx)
	if err != nil {
		s.logger.Error("session ended with error", "error", err)
	}
	s.finish(outcome, err)
}

func (s *Server) finish(outcome *session.Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = string(flow.StateStopped)
	s.finishedAt = time.Now()
	s.outcome = outcome
	s.lastErr = err
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// A session still starting picks the request up once it is running
	if !s.StopSession() {
		http.Error(w, "No session is running", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": "stopping"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	status := SessionStatus{State: s.state}
	if !s.startedAt.IsZero() {
		t := s.startedAt
		status.StartedAt = &t
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		status.FinishedAt = &t
	}
	if s.lastErr != nil {
		status.Error = s.lastErr.Error()
	}
	runner := s.runner
	outcome := s.outcome
	s.mu.RUnlock()

	switch {
	case outcome != nil && outcome.Report != nil:
		summary := outcome.Report.Summary
		status.Summary = &summary
		status.ReportPath = outcome.ReportPath
		status.ReportURL = outcome.ReportURL
	case runner != nil:
		summary := runner.Summary()
		status.Summary = &summary
	}

	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = n
	}

	lines, next := s.logs.Since(since)
	writeJSON(w, http.StatusOK, map[string]any{
		"lines": lines,
		"next":  next,
	})
}

func (s *Server) handleQuestionImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	image := s.image
	at := s.imageAt
	s.mu.RUnlock()

	if len(image) == 0 {
		http.Error(w, "No question captured yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	w.Write(image)
}

func (s *Server) setImage(captured flow.Captured) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = captured.Question.Image
	s.imageAt = time.Now()
}

// Wait blocks until the running session, if any, has finished or ctx expires
func (s *Server) Wait(ctx context.Context) error {
	s.mu.RLock()
	done := s.done
	s.mu.RUnlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StopSession asks a running session to stop, as POST /api/session/stop does
func (s *Server) StopSession() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != string(flow.StateRunning) {
		return false
	}
	s.stopAsked = true
	if s.runner != nil {
		s.runner.Stop()
	}
	return true
}
