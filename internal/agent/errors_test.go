package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	cfg := SingleRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = time.Millisecond
	return cfg
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{
			name:      "success first time",
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "llm error retried once",
			errs:      []error{NewLLMError("rate limited", nil), nil},
			wantCalls: 2,
		},
		{
			name:      "never more than one retry",
			errs:      []error{NewTimeoutError("slow", nil), NewTimeoutError("slow", nil), nil},
			wantCalls: 2,
			wantErr:   true,
		},
		{
			name:      "storage errors are not retried",
			errs:      []error{NewStorageError("disk full", nil), nil},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "browser errors are not in the single retry set",
			errs:      []error{NewBrowserError("no node", nil), nil},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:      "plain errors are not retried",
			errs:      []error{errors.New("boom"), nil},
			wantCalls: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastConfig(), func() error {
				err := tt.errs[calls]
				calls++
				return err
			})
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	cfg := SingleRetryConfig()
	cfg.InitialDelay = time.Hour
	cfg.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	err := Retry(ctx, cfg, func() error {
		cancel()
		return NewNetworkError("reload failed", nil)
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCategorizedError(t *testing.T) {
	cause := errors.New("net::ERR_NAME_NOT_RESOLVED")
	err := NewNetworkError("failed to navigate", cause)

	assert.Equal(t, "[network] failed to navigate: net::ERR_NAME_NOT_RESOLVED", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[timeout] question not visible", NewTimeoutError("question not visible", nil).Error())

	category, ok := CategoryOf(errors.Join(errors.New("context"), NewStorageError("write failed", nil)))
	require.True(t, ok)
	assert.Equal(t, ErrorCategoryStorage, category)

	_, ok = CategoryOf(cause)
	assert.False(t, ok)
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, BackoffFactor: 2}
	assert.Equal(t, time.Second, calculateDelay(0, cfg))
	assert.Equal(t, 2*time.Second, calculateDelay(1, cfg))
	assert.Equal(t, 3*time.Second, calculateDelay(2, cfg))
}
