package solver

import "context"

//go:generate mockgen -source=question.go -destination=../mocks/solver/mock_question.go -package=mock_solver

// Kind is the detected type of the question currently on the page
type Kind string

const (
	// KindNormal is a free-text answer question
	KindNormal Kind = "normal"
	// KindBookworkCheck is a multiple-choice recall of a previously given answer
	KindBookworkCheck Kind = "bookwork_check"
)

// PendingQuestion is a question captured from the page and not yet answered
type PendingQuestion struct {
	// Kind is the detected question type
	Kind Kind
	// Text is the literal question text (text capture mode)
	Text string
	// Image is the PNG screenshot of the question area (image capture mode)
	Image []byte
	// Code is the bookwork code shown on the page, if any
	Code string
}

// HasImage reports whether the question was captured as an image
func (q PendingQuestion) HasImage() bool {
	return len(q.Image) > 0
}

// Completer asks an external AI model for the answer to a question.
// Implementations must return the raw model text; normalisation happens in the Solver.
type Completer interface {
	Complete(ctx context.Context, q PendingQuestion) (string, error)
}
