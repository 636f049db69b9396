package flow

import (
	"context"
	"errors"

	"github.com/dreamup/answer-agent/internal/solver"
)

//go:generate mockgen -source=page.go -destination=../mocks/flow/mock_page.go -package=mock_flow

// ErrNoMoreQuestions is returned by a Page when the task has no further questions
var ErrNoMoreQuestions = errors.New("no more questions")

// Captured is a question read from the page
type Captured struct {
	Question solver.PendingQuestion
	// ScreenshotPath is where the question image was saved, if it was captured as one
	ScreenshotPath string
}

// Page is the automation target. Implementations hide every site-specific selector.
type Page interface {
	// WaitForQuestion blocks until a question is shown, or returns ErrNoMoreQuestions
	WaitForQuestion(ctx context.Context) error
	// DetectKind tells a normal question from a bookwork check
	DetectKind(ctx context.Context) (solver.Kind, error)
	// BookworkCode returns the bookwork code shown on the page, or ""
	BookworkCode(ctx context.Context) (string, error)
	// CaptureQuestion reads the current question as text or image
	CaptureQuestion(ctx context.Context, kind solver.Kind) (Captured, error)
	// Options returns the multiple-choice option labels of a bookwork check
	Options(ctx context.Context) ([]string, error)
	// SelectOption picks an option by index and confirms it
	SelectOption(ctx context.Context, index int) error
	// SubmitAnswer enters the answer and submits it
	SubmitAnswer(ctx context.Context, answer string) error
	// Advance moves on to the next question, or returns ErrNoMoreQuestions
	Advance(ctx context.Context) error
	// Reload refreshes the page for session recovery
	Reload(ctx context.Context) error
	// Close shuts the browser down
	Close() error
}
