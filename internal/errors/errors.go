package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrTypeSourceAPI           ErrorType = "source_api"
	ErrTypeDocumentUnavailable ErrorType = "document_unavailable"
	ErrTypeNoColumns           ErrorType = "no_columns"
	ErrTypeDatabase            ErrorType = "database"
	ErrTypeValidation          ErrorType = "validation"
	ErrTypeRateLimit           ErrorType = "rate_limit"
	ErrTypeNotFound            ErrorType = "not_found"
	ErrTypeConfig              ErrorType = "config"
	ErrTypeNetwork             ErrorType = "network"
	ErrTypeAuth                ErrorType = "auth"
	ErrTypeFileSystem          ErrorType = "filesystem"
	ErrTypeInternal            ErrorType = "internal"
)

// Error represents a structured error with type and optional suggestions
type Error struct {
	Type        ErrorType
	Message     string
	Cause       error
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}

	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// WithSuggestion adds a suggestion for resolving the error
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// New creates a new structured error
func New(errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
	}
}

// Newf creates a new structured error with formatted message
func Newf(errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errType ErrorType, message string) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with formatted message
func Wrapf(err error, errType ErrorType, format string, args ...interface{}) *Error {
	return &Error{
		Type:    errType,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// IsType reports whether any structured error in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	for err != nil {
		var structErr *Error
		if !errors.As(err, &structErr) {
			return false
		}

		if structErr.Type == errType {
			return true
		}

		err = structErr.Cause
	}

	return false
}

// GetType returns the error type if it's a structured error
func GetType(err error) ErrorType {
	var structErr *Error
	if errors.As(err, &structErr) {
		return structErr.Type
	}

	return ErrTypeInternal
}

// NewConfigError creates a configuration error with suggestions
func NewConfigError(message, field string) *Error {
	err := New(ErrTypeConfig, message)
	if field != "" {
		err.Message = fmt.Sprintf("%s (field: %s)", message, field)
	}

	return err.
		WithSuggestion("Check your configuration file syntax").
		WithSuggestion("Run with --help to see valid configuration options")
}

// NewDocumentUnavailable reports a document that could not be downloaded
func NewDocumentUnavailable(path string, cause error) *Error {
	return Wrapf(cause, ErrTypeDocumentUnavailable, "failed to download %s", path).
		WithSuggestion("Check that the file still exists on the default branch").
		WithSuggestion("Verify the access token can read repository contents")
}

// UserMessage renders err and the suggestions of every structured error in its chain
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder

	b.WriteString(err.Error())

	for cur := err; cur != nil; {
		var structErr *Error
		if !errors.As(cur, &structErr) {
			break
		}

		for _, s := range structErr.Suggestions {
			b.WriteString("\n  - ")
			b.WriteString(s)
		}

		cur = structErr.Cause
	}

	return b.String()
}
