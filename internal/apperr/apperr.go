// Package apperr defines the error taxonomy surfaced at the request boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Category classifies a failure for external callers.
type Category string

const (
	// CategoryConfiguration covers fatal misconfiguration: embedding dimension
	// mismatch against a stored index, invalid chunk/overlap settings.
	CategoryConfiguration Category = "configuration"
	// CategoryNotInitialized means a question was asked with no active index.
	CategoryNotInitialized Category = "not_initialized"
	// CategoryConflict means a supplied identifier already exists, or a record
	// transition was attempted on a record no longer in pending state.
	CategoryConflict Category = "conflict"
	// CategoryNotFound means a lookup by identifier matched nothing.
	CategoryNotFound Category = "not_found"
	// CategoryPayloadTooLarge means an ingest payload exceeded the configured cap.
	CategoryPayloadTooLarge Category = "payload_too_large"
	// CategoryValidation means the request shape was malformed.
	CategoryValidation Category = "validation"
	// CategoryProvider means an embedding or generation provider call failed
	// or timed out.
	CategoryProvider Category = "provider"
	// CategoryExtraction means the source document yielded no usable text.
	CategoryExtraction Category = "extraction"
	// CategoryInternal is the fallback for unexpected failures.
	CategoryInternal Category = "internal"
)

// Error carries a category, a human-readable message, and optional detail.
// It is translated exactly once, at the request boundary, into the stable
// {category, message, detail} payload.
type Error struct {
	Category Category
	Message  string
	Detail   string
	Err      error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with the given category and message.
func New(cat Category, message string) *Error {
	return &Error{Category: cat, Message: message}
}

// Newf returns an Error with a formatted detail string.
func Newf(cat Category, message, detailFormat string, args ...interface{}) *Error {
	return &Error{Category: cat, Message: message, Detail: fmt.Sprintf(detailFormat, args...)}
}

// Wrap returns an Error wrapping err; the wrapped error's text becomes the detail.
func Wrap(cat Category, message string, err error) *Error {
	e := &Error{Category: cat, Message: message, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

// CategoryOf returns the category of err, or CategoryInternal when err carries none.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryInternal
}

// As returns the *Error inside err, or a CategoryInternal wrapper when err is
// not an apperr. Never returns nil for a non-nil err.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Category: CategoryInternal, Message: "an unexpected error occurred", Detail: err.Error(), Err: err}
}
