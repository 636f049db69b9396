package solver

import (
	"context"
	"fmt"
	"log/slog"
)

// FallbackAnswer is returned and stored when the completer fails
const FallbackAnswer = "0"

// Source tells where an answer came from
type Source string

const (
	// SourceCache means the answer was already stored
	SourceCache Source = "cache"
	// SourceComputed means the completer produced the answer
	SourceComputed Source = "computed"
	// SourceFallback means the completer failed and FallbackAnswer was used
	SourceFallback Source = "fallback"
)

// Store is the answer persistence the Solver needs
type Store interface {
	Get(ctx context.Context, identifier string) (string, bool, error)
	Put(ctx context.Context, identifier, answer string) error
	Flush(ctx context.Context) error
}

// Lookup is the outcome of a cache lookup: a hit carries the stored answer
type Lookup struct {
	Hit    bool
	Answer string
}

// Result is the outcome of Solve
type Result struct {
	Identifier string
	Answer     string
	Source     Source
	// Err is the masked completer error when Source is SourceFallback
	Err error
}

// Solver answers questions from the store, falling back to the completer on a miss
type Solver struct {
	store     Store
	completer Completer
	logger    *slog.Logger
}

// New creates a Solver. A nil logger uses slog.Default().
func New(store Store, completer Completer, logger *slog.Logger) *Solver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Solver{
		store:     store,
		completer: completer,
		logger:    logger,
	}
}

// Lookup checks the store for an identifier
func (s *Solver) Lookup(ctx context.Context, identifier string) (Lookup, error) {
	answer, ok, err := s.store.Get(ctx, identifier)
	if err != nil {
		return Lookup{}, fmt.Errorf("failed to look up %q: %w", shorten(identifier), err)
	}
	if !ok {
		return Lookup{}, nil
	}
	return Lookup{Hit: true, Answer: answer}, nil
}

// Solve returns the stored answer for q, or asks the completer and stores the
// normalised result. Completer failures are masked with FallbackAnswer, which is
// stored like any other answer. Only store failures are returned as errors.
func (s *Solver) Solve(ctx context.Context, q PendingQuestion) (Result, error) {
	id := Identify(q)
	if id == "" {
		return Result{}, fmt.Errorf("question has neither text nor image")
	}

	lookup, err := s.Lookup(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if lookup.Hit {
		s.logger.Info("answer found in cache", "identifier", shorten(id), "answer", lookup.Answer)
		return Result{Identifier: id, Answer: lookup.Answer, Source: SourceCache}, nil
	}

	result := Result{Identifier: id, Source: SourceComputed}
	raw, err := s.completer.Complete(ctx, q)
	if err != nil {
		s.logger.Warn("completion failed, using fallback answer",
			"identifier", shorten(id),
			"fallback", FallbackAnswer,
			"error", err)
		result.Answer = FallbackAnswer
		result.Source = SourceFallback
		result.Err = err
	} else {
		result.Answer = Normalize(raw)
		s.logger.Info("answer computed", "identifier", shorten(id), "raw", raw, "answer", result.Answer)
	}

	if err := s.store.Put(ctx, id, result.Answer); err != nil {
		return result, fmt.Errorf("failed to store answer for %q: %w", shorten(id), err)
	}
	return result, nil
}

// Remember stores an answer under an alternate identifier such as a bookwork code
func (s *Solver) Remember(ctx context.Context, identifier, answer string) error {
	if identifier == "" {
		return nil
	}
	if err := s.store.Put(ctx, identifier, answer); err != nil {
		return fmt.Errorf("failed to remember %q: %w", identifier, err)
	}
	return nil
}

// Flush persists any buffered store state
func (s *Solver) Flush(ctx context.Context) error {
	return s.store.Flush(ctx)
}

// shorten keeps log lines readable for long question texts
func shorten(id string) string {
	const max = 64
	r := []rune(id)
	if len(r) <= max {
		return id
	}
	return string(r[:max]) + "..."
}
