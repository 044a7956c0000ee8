package core

import (
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatValidation ErrorCategory = "validation" // Invalid input
	ErrCatExecution  ErrorCategory = "execution"  // Runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Operation timed out
	ErrCatState      ErrorCategory = "state"      // State corruption/conflict
	ErrCatNetwork    ErrorCategory = "network"    // Network connectivity
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// ErrValidation creates a validation error.
func ErrValidation(code, message string) *DomainError {
	return &DomainError{Category: ErrCatValidation, Code: code, Message: message}
}

// ErrExecution creates an execution error.
func ErrExecution(code, message string) *DomainError {
	return &DomainError{Category: ErrCatExecution, Code: code, Message: message}
}

// ErrTimeout creates a timeout error.
func ErrTimeout(message string) *DomainError {
	return &DomainError{Category: ErrCatTimeout, Code: "TIMEOUT", Message: message}
}

// ErrState creates a state error.
func ErrState(code, message string) *DomainError {
	return &DomainError{Category: ErrCatState, Code: code, Message: message}
}

// ErrNetwork creates a network error.
func ErrNetwork(code, message string) *DomainError {
	return &DomainError{Category: ErrCatNetwork, Code: code, Message: message}
}

// ErrNotFound creates a not-found error.
func ErrNotFound(code, message string) *DomainError {
	return &DomainError{Category: ErrCatNotFound, Code: code, Message: message}
}

// ErrInternal creates an internal error.
func ErrInternal(code, message string) *DomainError {
	return &DomainError{Category: ErrCatInternal, Code: code, Message: message}
}

// Error codes used across the worker.
const (
	CodeRunNotFound     = "RUN_NOT_FOUND"
	CodeProjectNotFound = "PROJECT_NOT_FOUND"
	CodeGraphPersist    = "GRAPH_PERSIST_FAILED"
	CodeNodePanic       = "NODE_PANIC"
	CodeClaimFailed     = "CLAIM_FAILED"
)
