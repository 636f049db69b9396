package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dreamup/answer-agent/internal/config"
	"github.com/dreamup/answer-agent/internal/session"
	"github.com/dreamup/answer-agent/internal/solver"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Answer questions until the quiz ends",
	Long: `Open the start page in Chrome and answer questions until there are none left,
the iteration limit is reached or the run is interrupted.
Press Ctrl+C once to stop after the current question, twice to abort.`,
	RunE: runSession,
}

// runFlags maps run flags onto config keys
var runFlags = map[string]string{
	"url":              "session.start_url",
	"capture-mode":     "session.capture_mode",
	"headless":         "browser.headless",
	"user-data-dir":    "browser.user_data_dir",
	"max-iterations":   "flow.max_iterations",
	"backend":          "store.backend",
	"store-path":       "store.path",
	"report-dir":       "report.dir",
	"upload-bucket":    "report.upload_bucket",
	"model":            "openai.model",
	"max-failures":     "flow.max_consecutive_failures",
	"screenshot-dir":   "session.screenshot_dir",
	"log-level":        "log.level",
	"log-file":         "log.file",
	"question-timeout": "session.wait_timeout",
}

func init() {
	f := runCmd.Flags()
	f.StringP("url", "u", "", "Quiz start URL")
	f.String("capture-mode", "", "Question capture mode: image or text")
	f.Bool("headless", false, "Run browser in headless mode")
	f.String("user-data-dir", "", "Chrome profile directory with a signed-in session")
	f.IntP("max-iterations", "n", 0, "Stop after this many questions (0 = no limit)")
	f.String("backend", "", "Answer store backend: sqlite, file or s3")
	f.String("store-path", "", "Answer store path for the sqlite and file backends")
	f.StringP("report-dir", "o", "", "Directory for session reports")
	f.String("upload-bucket", "", "Upload the session report to this S3 bucket")
	f.String("model", "", "OpenAI model")
	f.Int("max-failures", 0, "Stop after this many failed questions in a row")
	f.String("screenshot-dir", "", "Directory for question screenshots")
	f.String("log-level", "", "Log level: debug, info, warn or error")
	f.String("log-file", "", "Also write logs to this file")
	f.Duration("question-timeout", 0, "How long to wait for each question to appear")
}

func bindRunFlags(cmd *cobra.Command) func(*config.ConfigLoader) error {
	return func(loader *config.ConfigLoader) error {
		for name, key := range runFlags {
			flag := cmd.Flags().Lookup(name)
			if flag == nil || !flag.Changed {
				continue
			}
			if err := loader.Viper().BindPFlag(key, flag); err != nil {
				return fmt.Errorf("failed to bind --%s: %w", name, err)
			}
		}
		return nil
	}
}

func runSession(cmd *cobra.Command, args []string) error {
	cfg, loader, err := loadConfig(bindRunFlags(cmd))
	if err != nil {
		return err
	}
	if err := loader.ValidateSession(cfg); err != nil {
		return err
	}

	logger, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	color.New(color.Bold).Fprintf(out, "Answer Agent v%s\n", version)
	fmt.Fprintf(out, "   URL: %s\n", cfg.Session.StartURL)
	fmt.Fprintf(out, "   Store: %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "   Capture: %s\n", cfg.Session.CaptureMode)
	fmt.Fprintf(out, "   Headless: %v\n", cfg.Browser.Headless)
	fmt.Fprintln(out)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess, err := session.Start(ctx, cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	// First interrupt stops after the current question, the second aborts
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		color.Yellow("Stopping after the current question...")
		sess.Stop()
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	outcome, runErr := sess.Run(ctx)
	printOutcome(out, outcome)
	return runErr
}

func printOutcome(out io.Writer, outcome *session.Outcome) {
	if outcome == nil || outcome.Report == nil {
		return
	}
	s := outcome.Report.Summary

	fmt.Fprintln(out)
	switch s.Status {
	case "completed":
		color.New(color.FgGreen).Fprintf(out, "Session completed (%s)\n", s.StopReason)
	case "completed_with_warnings":
		color.New(color.FgYellow).Fprintf(out, "Session completed with warnings (%s)\n", s.StopReason)
	default:
		color.New(color.FgRed).Fprintf(out, "Session aborted (%s)\n", s.StopReason)
	}

	fmt.Fprintf(out, "   Questions:  %d\n", s.Total)
	fmt.Fprintf(out, "   Cache hits: %d\n", s.CacheHits)
	fmt.Fprintf(out, "   Computed:   %d\n", s.Computed)
	fmt.Fprintf(out, "   Bookwork:   %d\n", s.BookworkChecks)
	if s.Fallbacks > 0 {
		color.New(color.FgYellow).Fprintf(out, "   Fallbacks:  %d (answered %q)\n", s.Fallbacks, solver.FallbackAnswer)
	}
	if s.Failures > 0 {
		color.New(color.FgRed).Fprintf(out, "   Failures:   %d (recovered %d)\n", s.Failures, s.Recoveries)
	}
	if outcome.ReportPath != "" {
		fmt.Fprintf(out, "   Report:     %s\n", outcome.ReportPath)
	}
	if outcome.ReportURL != "" {
		fmt.Fprintf(out, "   Uploaded:   %s\n", outcome.ReportURL)
	}
}
