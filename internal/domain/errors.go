package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrSourceUnavailable    = errors.New("source unavailable")
	ErrMandatoryDataMissing = errors.New("mandatory data missing")
	ErrConfiguration        = errors.New("configuration error")
	ErrValidation           = errors.New("validation error")
	ErrUnavailable          = errors.New("service unavailable")
	ErrLockHeld             = errors.New("lock already held")
	ErrZeroBase             = errors.New("trend base is zero")
)

// SourceError records a failure of one external origin. It is non-fatal for
// aggregate pipelines: the failing source contributes nothing.
type SourceError struct {
	Source string
	Asset  string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Asset != "" {
		return fmt.Sprintf("source %s (asset %s): %v", e.Source, e.Asset, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *SourceError) Unwrap() []error {
	return []error{ErrSourceUnavailable, e.Err}
}

// ValidationError rejects a malformed request before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
