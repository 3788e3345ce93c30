// Package apperr defines the application error taxonomy and central handling.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation and reporting decisions.
type Kind string

const (
	KindUserInput Kind = "user_input"
	KindNetwork   Kind = "network"
	KindAuth      Kind = "auth"
	KindNotFound  Kind = "not_found"
	KindInternal  Kind = "internal"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries both the operator-facing message and the text shown to the
// end user. The user message never leaks internals.
type AppError struct {
	Kind        Kind
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

// KindOf extracts the Kind from anywhere in the error chain; unknown errors
// classify as internal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Kind
	}

	return KindInternal
}

// NewUserInputError reports missing or malformed command arguments. The usage
// hint is shown to the user verbatim.
func NewUserInputError(usage string) *AppError {
	return &AppError{
		Kind:        KindUserInput,
		Code:        "E100",
		Message:     fmt.Sprintf("invalid input: %s", usage),
		UserMessage: usage,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewNetworkError reports an unreachable or timed-out external service.
func NewNetworkError(service string, cause error) *AppError {
	var underlying string
	if cause != nil {
		underlying = cause.Error()
	}

	return &AppError{
		Kind:        KindNetwork,
		Code:        "E200",
		Message:     fmt.Sprintf("%s unreachable: %s", service, underlying),
		UserMessage: fmt.Sprintf("%s is temporarily unavailable, please try again later.", service),
		Severity:    SeverityMedium,
		Retryable:   true,
		cause:       cause,
	}
}

// NewAuthError reports a terminal authentication failure in the login flow.
func NewAuthError(message, userMessage string) *AppError {
	return &AppError{
		Kind:        KindAuth,
		Code:        "E300",
		Message:     message,
		UserMessage: userMessage,
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewNotFoundError reports a missing entity (command, account, continuation).
func NewNotFoundError(what string) *AppError {
	return &AppError{
		Kind:        KindNotFound,
		Code:        "E400",
		Message:     fmt.Sprintf("%s not found", what),
		UserMessage: fmt.Sprintf("%s not found.", what),
		Severity:    SeverityLow,
		Retryable:   false,
	}
}

// NewInternalError wraps an unexpected failure. The user sees a generic message.
func NewInternalError(cause error) *AppError {
	var underlying string
	if cause != nil {
		underlying = cause.Error()
	}

	return &AppError{
		Kind:        KindInternal,
		Code:        "E500",
		Message:     fmt.Sprintf("internal error: %s", underlying),
		UserMessage: "Something went wrong. Please try again later.",
		Severity:    SeverityHigh,
		Retryable:   false,
		cause:       cause,
	}
}

// NewDatabaseError wraps a storage failure as a retryable internal error.
func NewDatabaseError(cause error) *AppError {
	err := NewInternalError(cause)
	err.Code = "E501"
	err.Retryable = true
	return err
}
