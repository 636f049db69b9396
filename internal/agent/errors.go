package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorCategory represents the type of error
type ErrorCategory string

const (
	// ErrorCategoryBrowser for element lookup, click and screenshot failures
	ErrorCategoryBrowser ErrorCategory = "browser"
	// ErrorCategoryNetwork for navigation and reload failures
	ErrorCategoryNetwork ErrorCategory = "network"
	// ErrorCategoryTimeout for bounded page waits that expired
	ErrorCategoryTimeout ErrorCategory = "timeout"
	// ErrorCategoryLLM for completion API errors
	ErrorCategoryLLM ErrorCategory = "llm"
	// ErrorCategoryStorage for answer store errors
	ErrorCategoryStorage ErrorCategory = "storage"
)

// CategorizedError wraps an error with category and retry info
type CategorizedError struct {
	Category  ErrorCategory
	Original  error
	Retryable bool
	Message   string
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Original == nil {
		return fmt.Sprintf("[%s] %s", e.Category, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Message, e.Original)
}

// Unwrap implements error unwrapping
func (e *CategorizedError) Unwrap() error {
	return e.Original
}

func categorized(category ErrorCategory, retryable bool, message string, err error) *CategorizedError {
	return &CategorizedError{
		Category:  category,
		Original:  err,
		Retryable: retryable,
		Message:   message,
	}
}

// NewBrowserError creates a browser-related error
func NewBrowserError(message string, err error) *CategorizedError {
	return categorized(ErrorCategoryBrowser, true, message, err)
}

// NewNetworkError creates a navigation error
func NewNetworkError(message string, err error) *CategorizedError {
	return categorized(ErrorCategoryNetwork, true, message, err)
}

// NewTimeoutError creates a timeout error
func NewTimeoutError(message string, err error) *CategorizedError {
	return categorized(ErrorCategoryTimeout, true, message, err)
}

// NewLLMError creates a completion API error
func NewLLMError(message string, err error) *CategorizedError {
	return categorized(ErrorCategoryLLM, true, message, err)
}

// NewStorageError creates a storage error; storage errors are never retried
func NewStorageError(message string, err error) *CategorizedError {
	return categorized(ErrorCategoryStorage, false, message, err)
}

// CategoryOf returns the category of the outermost CategorizedError in err's chain
func CategoryOf(err error) (ErrorCategory, bool) {
	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category, true
	}
	return "", false
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []ErrorCategory
}

// SingleRetryConfig allows one retry: a failure is never retried more than once
func SingleRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  1 * time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: []ErrorCategory{
			ErrorCategoryNetwork,
			ErrorCategoryTimeout,
			ErrorCategoryLLM,
		},
	}
}

// Retry executes a function with exponential backoff retry logic
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if !shouldRetry(err, config) {
			return err
		}

		if attempt < config.MaxAttempts-1 {
			delay := calculateDelay(attempt, config)

			// Wait with context cancellation support
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", config.MaxAttempts, lastErr)
}

// shouldRetry determines if an error is retryable
func shouldRetry(err error, config RetryConfig) bool {
	var catErr *CategorizedError
	if !errors.As(err, &catErr) {
		// Unknown errors are not retryable by default
		return false
	}

	if !catErr.Retryable {
		return false
	}

	for _, category := range config.RetryableErrors {
		if catErr.Category == category {
			return true
		}
	}

	return false
}

// calculateDelay calculates retry delay with exponential backoff
func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay)

	for i := 0; i < attempt; i++ {
		delay *= config.BackoffFactor
	}

	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	return time.Duration(delay)
}
