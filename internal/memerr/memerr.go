// Package memerr defines the error taxonomy shared by the storage,
// search and ingestion layers.
package memerr

import (
	"errors"
	"fmt"
)

// Kind classifies a validation failure.
type Kind string

const (
	// KindType marks input of the wrong shape (bool where int expected, etc).
	KindType Kind = "type"
	// KindRange marks well-typed input outside its allowed range.
	KindRange Kind = "range"
)

// ValidationError reports bad input at an API boundary. It is raised
// immediately and never downgraded; values are not clamped.
type ValidationError struct {
	Field string
	Kind  Kind
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%s): %s", e.Field, e.Kind, e.Msg)
}

// Validationf builds a ValidationError with a formatted message.
func Validationf(field string, kind Kind, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ConnectionError is a transient infrastructure failure. Callers may
// retry with backoff; the store itself never retries.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connection: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// StorageError is a constraint violation or other persistent storage
// failure. Not retryable without intervention.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// SearchError reports a backend-native search failure. It is always
// handled internally by degrading to a fallback strategy and never
// surfaces to the end caller.
type SearchError struct {
	Strategy string
	Err      error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("search (%s): %v", e.Strategy, e.Err)
}

func (e *SearchError) Unwrap() error { return e.Err }

// Connection wraps err as a ConnectionError. Returns nil when err is nil.
func Connection(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Op: op, Err: err}
}

// Storage wraps err as a StorageError. Returns nil when err is nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Search wraps err as a SearchError. Returns nil when err is nil.
func Search(strategy string, err error) error {
	if err == nil {
		return nil
	}
	return &SearchError{Strategy: strategy, Err: err}
}

// Retryable reports whether err is safe to retry with backoff.
func Retryable(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}
