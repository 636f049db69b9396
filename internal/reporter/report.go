package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dreamup/answer-agent/internal/solver"
	"github.com/google/uuid"
)

// Stop reasons recorded by the flow controller
const (
	StopFinished        = "finished"
	StopRequested       = "stopped"
	StopMaxIterations   = "max_iterations"
	StopUnrecoverable   = "unrecoverable"
	StopTooManyFailures = "too_many_failures"
	StopCancelled       = "cancelled"
)

// Report is the record of one answering session
type Report struct {
	// ReportID is a unique identifier for this report
	ReportID string `json:"report_id"`
	// StartURL is the page the session started on
	StartURL string `json:"start_url"`
	// Timestamp is when the session started
	Timestamp time.Time `json:"timestamp"`
	// Duration is how long the session ran
	Duration time.Duration `json:"duration_ms"`
	// Entries has one element per loop iteration
	Entries []Entry `json:"entries"`
	// Summary provides a high-level overview
	Summary Summary `json:"summary"`
	// Metadata contains additional information
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Entry records a single loop iteration
type Entry struct {
	Iteration      int           `json:"iteration"`
	Kind           solver.Kind   `json:"kind,omitempty"`
	Identifier     string        `json:"identifier,omitempty"`
	Code           string        `json:"code,omitempty"`
	Answer         string        `json:"answer,omitempty"`
	Source         solver.Source `json:"source,omitempty"`
	OptionIndex    int           `json:"option_index,omitempty"`
	OptionMatched  bool          `json:"option_matched,omitempty"`
	ScreenshotPath string        `json:"screenshot_path,omitempty"`
	S3URL          string        `json:"s3_url,omitempty"`
	Error          string        `json:"error,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// Summary counts what happened during the session
type Summary struct {
	// Status is completed, completed_with_warnings or aborted
	Status         string `json:"status"`
	StopReason     string `json:"stop_reason,omitempty"`
	Total          int    `json:"total"`
	CacheHits      int    `json:"cache_hits"`
	Computed       int    `json:"computed"`
	Fallbacks      int    `json:"fallbacks"`
	BookworkChecks int    `json:"bookwork_checks"`
	Failures       int    `json:"failures"`
	Recoveries     int    `json:"recoveries"`
}

// ReportBuilder accumulates entries while the loop runs. It is safe for
// concurrent use so a presentation shell can read summaries mid-run.
type ReportBuilder struct {
	mu         sync.Mutex
	startURL   string
	startTime  time.Time
	entries    []Entry
	recoveries int
	stopReason string
	metadata   map[string]string
}

// NewReportBuilder creates a new report builder
func NewReportBuilder(startURL string) *ReportBuilder {
	return &ReportBuilder{
		startURL:  startURL,
		startTime: time.Now(),
		metadata:  make(map[string]string),
	}
}

// AddEntry records an iteration
func (rb *ReportBuilder) AddEntry(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	rb.mu.Lock()
	rb.entries = append(rb.entries, e)
	rb.mu.Unlock()
}

// AddRecovery counts a successful session recovery
func (rb *ReportBuilder) AddRecovery() {
	rb.mu.Lock()
	rb.recoveries++
	rb.mu.Unlock()
}

// SetStopReason records why the loop ended
func (rb *ReportBuilder) SetStopReason(reason string) {
	rb.mu.Lock()
	rb.stopReason = reason
	rb.mu.Unlock()
}

// AddMetadata adds a metadata key-value pair
func (rb *ReportBuilder) AddMetadata(key, value string) {
	rb.mu.Lock()
	rb.metadata[key] = value
	rb.mu.Unlock()
}

// Summary returns the counts so far
func (rb *ReportBuilder) Summary() Summary {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.buildSummary()
}

// Build constructs the final report
func (rb *ReportBuilder) Build() *Report {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	entries := make([]Entry, len(rb.entries))
	copy(entries, rb.entries)

	metadata := make(map[string]string, len(rb.metadata))
	for k, v := range rb.metadata {
		metadata[k] = v
	}

	return &Report{
		ReportID:  uuid.New().String(),
		StartURL:  rb.startURL,
		Timestamp: rb.startTime,
		Duration:  time.Since(rb.startTime),
		Entries:   entries,
		Summary:   rb.buildSummary(),
		Metadata:  metadata,
	}
}

// buildSummary must be called with rb.mu held
func (rb *ReportBuilder) buildSummary() Summary {
	s := Summary{
		StopReason: rb.stopReason,
		Total:      len(rb.entries),
		Recoveries: rb.recoveries,
	}

	for _, e := range rb.entries {
		if e.Error != "" {
			s.Failures++
			continue
		}
		if e.Kind == solver.KindBookworkCheck {
			s.BookworkChecks++
		}
		switch e.Source {
		case solver.SourceCache:
			s.CacheHits++
		case solver.SourceComputed:
			s.Computed++
		case solver.SourceFallback:
			s.Fallbacks++
		}
	}

	switch {
	case rb.stopReason == StopUnrecoverable || rb.stopReason == StopTooManyFailures:
		s.Status = "aborted"
	case s.Failures > 0 || s.Fallbacks > 0:
		s.Status = "completed_with_warnings"
	default:
		s.Status = "completed"
	}

	return s
}

// SaveToFile saves the report to a JSON file
func (r *Report) SaveToFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}

	return nil
}

// SaveToDir saves the report under dir with a timestamped name and returns the path.
// An empty dir uses the system temp directory.
func (r *Report) SaveToDir(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory %s: %w", dir, err)
	}

	filename := fmt.Sprintf("session_%s_%s.json",
		r.Timestamp.Format("20060102_150405"),
		r.ReportID[:8],
	)
	path := filepath.Join(dir, filename)

	if err := r.SaveToFile(path); err != nil {
		return "", err
	}
	return path, nil
}
