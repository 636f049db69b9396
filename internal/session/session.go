// Package session wires configuration into a ready-to-run answering session.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dreamup/answer-agent/internal/agent"
	"github.com/dreamup/answer-agent/internal/ai"
	"github.com/dreamup/answer-agent/internal/config"
	"github.com/dreamup/answer-agent/internal/flow"
	"github.com/dreamup/answer-agent/internal/reporter"
	"github.com/dreamup/answer-agent/internal/solver"
	"github.com/dreamup/answer-agent/internal/store"
)

// OpenStore opens the answer store selected in cfg
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Backend: cfg.Backend,
		Path:    cfg.Path,
		Bucket:  cfg.Bucket,
		Key:     cfg.Key,
		Region:  cfg.Region,
	})
	if err != nil {
		return nil, agent.NewStorageError("failed to open answer store", err)
	}
	return st, nil
}

// NewSolver opens the store and builds a solver backed by OpenAI. The
// returned store must be closed by the caller.
func NewSolver(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*solver.Solver, store.Store, error) {
	completer, err := ai.NewOpenAI(ai.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	if err != nil {
		return nil, nil, err
	}

	st, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return solver.New(st, completer, logger), st, nil
}

// Outcome is what a finished session leaves behind
type Outcome struct {
	Report     *reporter.Report
	ReportPath string
	// ReportURL is set when the report was uploaded to S3
	ReportURL string
}

// Session is one browser run over the quiz
type Session struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	controller *flow.Controller
	report     *reporter.ReportBuilder
}

// Start launches the browser, opens the start page and returns a session
// ready to Run. onCapture may be nil.
func Start(ctx context.Context, cfg *config.Config, logger *slog.Logger, onCapture func(flow.Captured)) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	slv, st, err := NewSolver(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	browser, err := agent.NewBrowserManager(agent.BrowserOptions{
		Headless:     cfg.Browser.Headless,
		UserDataDir:  cfg.Browser.UserDataDir,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	page := agent.NewPage(browser, agent.PageConfig{
		StartURL:      cfg.Session.StartURL,
		Selectors:     cfg.Session.Selectors,
		CaptureMode:   agent.CaptureMode(cfg.Session.CaptureMode),
		WaitTimeout:   cfg.Session.WaitTimeout,
		ScreenshotDir: cfg.Session.ScreenshotDir,
		Logger:        logger,
	})
	if err := page.Open(ctx); err != nil {
		page.Close()
		st.Close()
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Session.StartURL, err)
	}

	report := reporter.NewReportBuilder(cfg.Session.StartURL)
	report.AddMetadata("store_backend", cfg.Store.Backend)
	report.AddMetadata("capture_mode", cfg.Session.CaptureMode)
	report.AddMetadata("model", cfg.OpenAI.Model)
	report.AddMetadata("max_iterations", strconv.Itoa(cfg.Flow.MaxIterations))

	controller := flow.New(page, slv, flow.Options{
		MaxIterations:          cfg.Flow.MaxIterations,
		MaxConsecutiveFailures: cfg.Flow.MaxConsecutiveFailures,
		Report:                 report,
		OnCapture:              onCapture,
		Logger:                 logger,
	})

	return &Session{
		cfg:        cfg,
		logger:     logger,
		store:      st,
		controller: controller,
		report:     report,
	}, nil
}

// Summary returns the counts recorded so far
func (s *Session) Summary() reporter.Summary {
	return s.report.Summary()
}

// Stop asks the loop to end after the current iteration
func (s *Session) Stop() {
	s.controller.Stop()
}

// Run blocks until the loop ends, then closes the store and writes the
// report. The loop error is returned alongside whatever outcome was produced.
func (s *Session) Run(ctx context.Context) (*Outcome, error) {
	runErr := s.controller.Run(ctx)

	if err := s.store.Close(); err != nil {
		s.logger.Error("failed to close answer store", "error", err)
	}

	outcome := &Outcome{Report: s.report.Build()}

	path, err := outcome.Report.SaveToDir(s.cfg.Report.Dir)
	if err != nil {
		s.logger.Error("failed to save session report", "error", err)
	} else {
		outcome.ReportPath = path
		s.logger.Info("session report saved", "path", path)
	}

	if s.cfg.Report.UploadBucket != "" {
		url, err := s.upload(ctx, outcome.Report)
		if err != nil {
			s.logger.Error("failed to upload session report", "error", err)
		} else {
			outcome.ReportURL = url
			s.logger.Info("session report uploaded", "url", url)
		}
	}

	return outcome, runErr
}

func (s *Session) upload(ctx context.Context, report *reporter.Report) (string, error) {
	// The run context may already be cancelled by an interrupt
	ctx = context.WithoutCancel(ctx)

	uploader, err := reporter.NewS3Uploader(ctx, s.cfg.Report.UploadBucket, s.cfg.Report.Region)
	if err != nil {
		return "", err
	}
	return uploader.UploadReport(ctx, report)
}
