package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for orchestration core errors.
type ErrorCode string

// Profiling error codes
const (
	PROFILE_RESOLUTION_FAILED ErrorCode = "PROFILE_RESOLUTION_FAILED"
	PROFILE_INVALID_TARGET    ErrorCode = "PROFILE_INVALID_TARGET"
)

// Catalog error codes
const (
	TOOL_NOT_FOUND  ErrorCode = "TOOL_NOT_FOUND"
	CATALOG_INVALID ErrorCode = "CATALOG_INVALID"
)

// Decision engine error codes
const (
	PARAMS_INCOMPLETE ErrorCode = "PARAMS_INCOMPLETE"
	PLAN_FAILED       ErrorCode = "PLAN_FAILED"
)

// Cache error codes. CACHE_UNAVAILABLE is internal only: the cache layer
// converts it to a miss before callers ever see it.
const (
	CACHE_UNAVAILABLE ErrorCode = "CACHE_UNAVAILABLE"
)

// Process orchestration error codes
const (
	PROCESS_LAUNCH_FAILED ErrorCode = "PROCESS_LAUNCH_FAILED"
	PROCESS_TIMEOUT       ErrorCode = "PROCESS_TIMEOUT"
	PROCESS_TERMINATED    ErrorCode = "PROCESS_TERMINATED"
	PROCESS_NOT_FOUND     ErrorCode = "PROCESS_NOT_FOUND"
	ORCHESTRATOR_CLOSED   ErrorCode = "ORCHESTRATOR_CLOSED"
)

// Coordinator error codes
const (
	RUN_ABORTED ErrorCode = "RUN_ABORTED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// CoreError is a structured error carrying an error code, message, and
// optional cause. It supports error wrapping and a retryability hint used
// by the orchestrator's fallback logic.
type CoreError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can compare against sentinel
// CoreError values without caring about message text.
func (e *CoreError) Is(target error) bool {
	var coreErr *CoreError
	if errors.As(target, &coreErr) {
		return e.Code == coreErr.Code
	}
	return false
}

// NewError creates a non-retryable CoreError with the given code and message.
func NewError(code ErrorCode, message string) *CoreError {
	return &CoreError{Code: code, Message: message}
}

// NewRetryableError creates a retryable CoreError. Use for transient
// failures that a reduced-scope re-attempt may resolve (timeouts, mostly).
func NewRetryableError(code ErrorCode, message string) *CoreError {
	return &CoreError{Code: code, Message: message, Retryable: true}
}

// WrapError creates a non-retryable CoreError wrapping an existing error.
func WrapError(code ErrorCode, message string, cause error) *CoreError {
	return &CoreError{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the ErrorCode from err, or returns the empty string if
// err is not a CoreError.
func CodeOf(err error) ErrorCode {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable hint.
func IsRetryable(err error) bool {
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr.Retryable
	}
	return false
}
