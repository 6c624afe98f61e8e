package core

import "github.com/pkg/errors"

var (
	// ErrNotFound is wrapped by every domain "not found" error.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is wrapped by every domain "not allowed" error.
	ErrForbidden = errors.New("permission denied")
	// ErrConflict is wrapped by every domain error caused by the current state of a resource.
	ErrConflict = errors.New("conflict")
	// ErrThrottled is wrapped by every domain error raised when a caller must wait before retrying.
	ErrThrottled = errors.New("too many requests")
)

// DomainError carries a public message while still being matched against a generic kind.
type DomainError struct {
	Kind    error
	Message string
}

func NewDomainError(kind error, msg string) error {
	return &DomainError{Kind: kind, Message: msg}
}

func (err *DomainError) Error() string {
	return err.Message
}

// IsKind reports whether err (or its cause) is a DomainError of the given kind.
func IsKind(err error, kind error) bool {
	if derr, ok := errors.Cause(err).(*DomainError); ok {
		return derr.Kind == kind
	}
	return errors.Cause(err) == kind
}

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
