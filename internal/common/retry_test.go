package common

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costlink/costlink/internal/service"
)

var fastRetry = service.RetryOptions{
	MaxAttempts:  3,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Multiplier:   2,
}

func TestWithRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("flaky: %w", ErrDatabase)
		}
		return nil
	}, fastRetry)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithRetryStopsOnNonRetryableError(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return fmt.Errorf("bad table: %w", ErrInvalidConfig)
	}, fastRetry)

	require.Error(t, err)
	assert.Equal(t, 1, attempts, "configuration errors never resolve by retrying")
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), func() error {
		attempts++
		return ErrDatabase
	}, fastRetry)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxRetries)
	assert.Equal(t, fastRetry.MaxAttempts, attempts)
}

func TestWithRetryHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error {
		return ErrDatabase
	}, fastRetry)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"database errors retry", ErrDatabase, true},
		{"deadline exceeded retries", context.DeadlineExceeded, true},
		{"integrity violations do not", ErrIntegrity, false},
		{"invalid config does not", ErrInvalidConfig, false},
		{"missing field does not", ErrMissingField, false},
		{"explicit retryable wrapper", &RetryableError{Err: errors.New("x"), Retryable: true}, true},
		{"explicit non-retryable wrapper", &RetryableError{Err: errors.New("x"), Retryable: false}, false},
		{"unknown errors do not", errors.New("mystery"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestConfigErrorNamesTable(t *testing.T) {
	err := NewConfigError("classifier.family_type_rules", ErrInvalidConfig)

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "classifier.family_type_rules")

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "classifier.family_type_rules", cfgErr.Table)
}
