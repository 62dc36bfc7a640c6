package transport

import (
	"errors"
	"fmt"
)

// Category is the normalized transport failure taxonomy.
type Category string

const (
	// CategoryConnection covers dial, handshake and dropped-session failures
	CategoryConnection Category = "connection"

	// CategoryTimeout indicates the per-operation deadline elapsed
	CategoryTimeout Category = "timeout"

	// CategoryAuthentication indicates the host refused our credentials
	CategoryAuthentication Category = "authentication"

	// CategoryNotFound indicates the requested file does not exist
	CategoryNotFound Category = "not_found"

	// CategoryAlreadyExists indicates an upload target is already present
	CategoryAlreadyExists Category = "already_exists"

	// CategoryUnavailable indicates the circuit breaker is open
	CategoryUnavailable Category = "unavailable"

	// CategoryInternal indicates an unexpected failure
	CategoryInternal Category = "internal"
)

// Sentinels matched through errors.Is against any TransportError of the
// corresponding category.
var (
	ErrNotFound      = errors.New("file not found")
	ErrAlreadyExists = errors.New("file already exists")
)

// TransportError wraps a failed host operation with its category.
type TransportError struct {
	Category   Category
	Op         string
	Path       string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *TransportError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("transport %s %s [%s]: %v", e.Op, e.Path, e.Category, e.Underlying)
	}
	return fmt.Sprintf("transport %s %s [%s]", e.Op, e.Path, e.Category)
}

// Unwrap supports error unwrapping
func (e *TransportError) Unwrap() error {
	return e.Underlying
}

// Is maps categories onto the package sentinels.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Category == CategoryNotFound
	case ErrAlreadyExists:
		return e.Category == CategoryAlreadyExists
	}
	return false
}

// NewError creates a categorized transport error.
func NewError(category Category, op, path string, underlying error) *TransportError {
	retryable := category == CategoryConnection ||
		category == CategoryTimeout

	return &TransportError{
		Category:   category,
		Op:         op,
		Path:       path,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the category from an error
func GetCategory(err error) Category {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryInternal
}

// countsAsOutage reports whether err says something about host health, as
// opposed to the state of one file.
func countsAsOutage(err error) bool {
	switch GetCategory(err) {
	case CategoryConnection, CategoryTimeout, CategoryInternal:
		return true
	}
	return false
}
