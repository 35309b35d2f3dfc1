// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound  = errors.New("not found")
	ErrIntegrity = errors.New("integrity violation")
	ErrDatabase  = errors.New("database operation failed")

	// Entity errors. A missing required field fails that one operation,
	// never the whole run.
	ErrMissingField = errors.New("missing required field")

	// Configuration errors. These are fatal at startup, never deferred.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ConfigError wraps a configuration problem with the rule table it came
// from, so startup failures name the offending table.
type ConfigError struct {
	Err   error
	Table string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config table %q: %v", e.Table, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a configuration error for a named rule table.
func NewConfigError(table string, err error) error {
	return &ConfigError{Table: table, Err: err}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Integrity and configuration failures never resolve by retrying.
	if errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrMissingField) {
		return false
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return errors.Is(err, ErrDatabase)
}
