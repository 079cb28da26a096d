// Package apperr provides categorized errors shared by sqlquest components.
package apperr

import (
	"errors"
	"fmt"
)

// Category classifies errors by who is responsible for them.
type Category string

const (
	CategoryContent     Category = "CONTENT"
	CategoryLearner     Category = "LEARNER"
	CategoryPersistence Category = "PERSISTENCE"
	CategoryEnvironment Category = "ENVIRONMENT"
	CategoryAuth        Category = "AUTH"
	CategoryValidation  Category = "VALIDATION"
)

const (
	// Content codes
	CodeSetupFailed     = "SETUP_FAILED"
	CodeReferenceFailed = "REFERENCE_FAILED"
	CodeInvalidCatalog  = "INVALID_CATALOG"

	// Learner codes
	CodeStatementFailed = "STATEMENT_FAILED"

	// Persistence codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeReadFailed  = "READ_FAILED"

	// Environment codes
	CodeNoSelection = "NO_SELECTION"
	CodeNoSession   = "NO_SESSION"
	CodeBlocked     = "BLOCKED"

	// Auth codes
	CodeInvalidToken = "INVALID_TOKEN"
	CodeBadLogin     = "BAD_LOGIN"

	// Validation codes
	CodeInvalidInput = "INVALID_INPUT"
)

// Error is the structured error used across packages.
type Error struct {
	Category Category
	Code     string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target has the same category and code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates an Error without a cause.
func New(category Category, code, message string) *Error {
	return &Error{Category: category, Code: code, Message: message}
}

// Wrap creates an Error wrapping cause.
func Wrap(category Category, code, message string, cause error) *Error {
	return &Error{Category: category, Code: code, Message: message, Cause: cause}
}

// CategoryOf extracts the category from an error chain, or "".
func CategoryOf(err error) Category {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}

// CodeOf extracts the code from an error chain, or "".
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func Persistence(message string, cause error) *Error {
	return Wrap(CategoryPersistence, CodeWriteFailed, message, cause)
}

func Content(code, message string, cause error) *Error {
	return Wrap(CategoryContent, code, message, cause)
}

func Environment(code, message string) *Error {
	return New(CategoryEnvironment, code, message)
}

func Validation(message string) *Error {
	return New(CategoryValidation, CodeInvalidInput, message)
}
