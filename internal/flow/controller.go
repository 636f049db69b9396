package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamup/answer-agent/internal/reporter"
	"github.com/dreamup/answer-agent/internal/solver"
)

// ErrAlreadyRunning is returned by Run when the controller is already running
var ErrAlreadyRunning = errors.New("flow is already running")

// State is the controller lifecycle state
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Recovery is the outcome of a recovery attempt
type Recovery int

const (
	Recovered Recovery = iota
	Unrecoverable
)

// DefaultMaxConsecutiveFailures bounds how many iterations in a row may fail
const DefaultMaxConsecutiveFailures = 3

// MinConsecutiveFailures is the lowest bound accepted. A failed iteration is
// always followed by one recovery before the bound can end the run.
const MinConsecutiveFailures = 2

const shutdownTimeout = 30 * time.Second

// Options tunes the controller
type Options struct {
	// MaxIterations stops the loop after this many iterations; 0 means no limit
	MaxIterations int
	// MaxConsecutiveFailures stops the loop after this many failed iterations in a
	// row. Zero uses the default; values below MinConsecutiveFailures are raised.
	MaxConsecutiveFailures int
	// Report receives one entry per iteration; a new builder is used when nil
	Report *reporter.ReportBuilder
	// OnCapture is called with every question captured as an image
	OnCapture func(Captured)
	Logger    *slog.Logger
}

// Controller runs the detect, solve, submit, advance loop against a Page
type Controller struct {
	page   Page
	solver *solver.Solver
	opts   Options
	logger *slog.Logger
	report *reporter.ReportBuilder

	mu            sync.Mutex
	state         State
	stopRequested atomic.Bool
}

// New creates a controller in the Idle state
func New(page Page, s *solver.Solver, opts Options) *Controller {
	switch {
	case opts.MaxConsecutiveFailures <= 0:
		opts.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	case opts.MaxConsecutiveFailures < MinConsecutiveFailures:
		opts.MaxConsecutiveFailures = MinConsecutiveFailures
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Report == nil {
		opts.Report = reporter.NewReportBuilder("")
	}

	return &Controller{
		page:   page,
		solver: s,
		opts:   opts,
		logger: opts.Logger,
		report: opts.Report,
		state:  StateIdle,
	}
}

// State returns the current lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Report returns the builder iterations are recorded into
func (c *Controller) Report() *reporter.ReportBuilder {
	return c.report
}

// Stop asks the loop to end. It is observed between iterations only; the step
// in progress always completes. A stop requested before Run applies to it.
func (c *Controller) Stop() {
	if c.stopRequested.CompareAndSwap(false, true) {
		c.logger.Info("stop requested")
	}
}

// Run blocks until the loop ends. Whatever the reason, the page is closed and
// the answer store flushed before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateRunning {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	c.state = StateRunning
	c.mu.Unlock()

	c.logger.Info("flow started",
		"max_iterations", c.opts.MaxIterations,
		"max_consecutive_failures", c.opts.MaxConsecutiveFailures)

	reason, err := c.loop(ctx)
	c.report.SetStopReason(reason)
	c.shutdown()

	c.mu.Lock()
	c.state = StateStopped
	c.stopRequested.Store(false)
	c.mu.Unlock()

	summary := c.report.Summary()
	c.logger.Info("flow stopped",
		"reason", reason,
		"total", summary.Total,
		"cache_hits", summary.CacheHits,
		"computed", summary.Computed,
		"fallbacks", summary.Fallbacks,
		"failures", summary.Failures)
	return err
}

func (c *Controller) loop(ctx context.Context) (string, error) {
	failures := 0

	for iteration := 1; ; iteration++ {
		if c.stopRequested.Load() {
			return reporter.StopRequested, nil
		}
		if err := ctx.Err(); err != nil {
			return reporter.StopCancelled, err
		}
		if c.opts.MaxIterations > 0 && iteration > c.opts.MaxIterations {
			return reporter.StopMaxIterations, nil
		}

		entry, err := c.step(ctx, iteration)
		if err == nil || errors.Is(err, ErrNoMoreQuestions) {
			if entry.Source != "" {
				c.report.AddEntry(entry)
			}
			if err != nil {
				c.logger.Info("no more questions")
				return reporter.StopFinished, nil
			}
			failures = 0
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return reporter.StopCancelled, ctxErr
		}

		entry.Error = err.Error()
		c.report.AddEntry(entry)
		failures++
		c.logger.Error("iteration failed", "iteration", iteration, "consecutive_failures", failures, "error", err)

		if failures >= c.opts.MaxConsecutiveFailures {
			return reporter.StopTooManyFailures, fmt.Errorf("%d consecutive failures, last: %w", failures, err)
		}
		if c.stopRequested.Load() {
			return reporter.StopRequested, nil
		}
		if c.recover(ctx) == Unrecoverable {
			return reporter.StopUnrecoverable, fmt.Errorf("session recovery failed after: %w", err)
		}
		c.report.AddRecovery()
	}
}

// step runs one iteration
func (c *Controller) step(ctx context.Context, iteration int) (reporter.Entry, error) {
	entry := reporter.Entry{Iteration: iteration}

	if err := c.page.WaitForQuestion(ctx); err != nil {
		return entry, fmt.Errorf("wait for question: %w", err)
	}

	kind, err := c.page.DetectKind(ctx)
	if err != nil {
		return entry, fmt.Errorf("detect question kind: %w", err)
	}
	entry.Kind = kind

	if kind == solver.KindBookworkCheck {
		return c.answerBookwork(ctx, entry)
	}
	return c.answerNormal(ctx, entry)
}

func (c *Controller) answerNormal(ctx context.Context, entry reporter.Entry) (reporter.Entry, error) {
	captured, err := c.page.CaptureQuestion(ctx, solver.KindNormal)
	if err != nil {
		return entry, fmt.Errorf("capture question: %w", err)
	}
	entry.ScreenshotPath = captured.ScreenshotPath
	c.publish(captured)

	res, err := c.solver.Solve(ctx, captured.Question)
	if err != nil {
		return entry, fmt.Errorf("solve: %w", err)
	}
	entry.Identifier = res.Identifier
	entry.Answer = res.Answer
	entry.Source = res.Source

	code, err := c.page.BookworkCode(ctx)
	if err != nil {
		c.logger.Warn("could not read bookwork code", "error", err)
	}
	if code != "" {
		entry.Code = code
		if err := c.solver.Remember(ctx, solver.BookworkIdentifier(code), res.Answer); err != nil {
			return entry, err
		}
	}

	if err := c.page.SubmitAnswer(ctx, res.Answer); err != nil {
		return entry, fmt.Errorf("submit answer: %w", err)
	}
	c.logger.Info("answer submitted",
		"iteration", entry.Iteration,
		"answer", res.Answer,
		"source", res.Source,
		"code", code)

	if err := c.page.Advance(ctx); err != nil {
		return entry, fmt.Errorf("advance: %w", err)
	}
	return entry, nil
}

func (c *Controller) answerBookwork(ctx context.Context, entry reporter.Entry) (reporter.Entry, error) {
	code, err := c.page.BookworkCode(ctx)
	if err != nil {
		return entry, fmt.Errorf("read bookwork code: %w", err)
	}
	entry.Code = code

	if id := solver.BookworkIdentifier(code); id != "" {
		lookup, err := c.solver.Lookup(ctx, id)
		if err != nil {
			return entry, err
		}
		if lookup.Hit {
			entry.Identifier = id
			entry.Answer = lookup.Answer
			entry.Source = solver.SourceCache
		}
	}

	if entry.Source == "" {
		c.logger.Warn("bookwork code not in store, solving the question instead", "code", code)
		captured, err := c.page.CaptureQuestion(ctx, solver.KindBookworkCheck)
		if err != nil {
			return entry, fmt.Errorf("capture bookwork question: %w", err)
		}
		entry.ScreenshotPath = captured.ScreenshotPath
		c.publish(captured)

		res, err := c.solver.Solve(ctx, captured.Question)
		if err != nil {
			return entry, fmt.Errorf("solve: %w", err)
		}
		entry.Identifier = res.Identifier
		entry.Answer = res.Answer
		entry.Source = res.Source
	}

	options, err := c.page.Options(ctx)
	if err != nil {
		return entry, fmt.Errorf("read bookwork options: %w", err)
	}

	index, matched, err := solver.MatchOption(options, entry.Answer)
	if err != nil {
		return entry, fmt.Errorf("match bookwork option: %w", err)
	}
	if !matched {
		c.logger.Warn("no option matches the answer, selecting the first option",
			"code", code,
			"answer", entry.Answer,
			"options", options)
	}
	entry.OptionIndex = index
	entry.OptionMatched = matched

	if err := c.page.SelectOption(ctx, index); err != nil {
		return entry, fmt.Errorf("select option %d: %w", index, err)
	}
	c.logger.Info("bookwork check answered",
		"iteration", entry.Iteration,
		"code", code,
		"option", index,
		"matched", matched)
	return entry, nil
}

// recover reloads the page once and waits for the question area to come back
func (c *Controller) recover(ctx context.Context) Recovery {
	c.logger.Info("attempting recovery: reloading page")

	if err := c.page.Reload(ctx); err != nil {
		c.logger.Error("recovery reload failed", "error", err)
		return Unrecoverable
	}
	if err := c.page.WaitForQuestion(ctx); err != nil && !errors.Is(err, ErrNoMoreQuestions) {
		c.logger.Error("question area did not reappear after reload", "error", err)
		return Unrecoverable
	}

	c.logger.Info("recovered")
	return Recovered
}

// shutdown closes the browser and flushes the store, logging but not returning failures
func (c *Controller) shutdown() {
	if err := c.page.Close(); err != nil {
		c.logger.Warn("failed to close browser", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.solver.Flush(ctx); err != nil {
		c.logger.Error("failed to flush answer store", "error", err)
	}
}

func (c *Controller) publish(captured Captured) {
	if c.opts.OnCapture != nil && captured.Question.HasImage() {
		c.opts.OnCapture(captured)
	}
}
