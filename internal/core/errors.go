package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatPipelineFatal ErrorCategory = "pipeline_fatal" // Guard tripped or lock unavailable
	ErrCatDegraded      ErrorCategory = "degraded"       // One diagnostic step failed
	ErrCatCallerError   ErrorCategory = "caller_error"   // Invalid use of the API
	ErrCatUnsupported   ErrorCategory = "unsupported"    // Not available on this platform
	ErrCatInternal      ErrorCategory = "internal"       // Unexpected internal error
)

// DomainError represents a structured error from the domain layer.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Details  map[string]interface{}
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

// WithDetail adds contextual information.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ErrPipelineFatal creates an error that aborts artifact generation.
func ErrPipelineFatal(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatPipelineFatal,
		Code:     code,
		Message:  message,
	}
}

// ErrDegraded creates an error for a diagnostic step that failed without
// stopping the pipeline.
func ErrDegraded(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatDegraded,
		Code:     code,
		Message:  message,
	}
}

// ErrCallerError creates an error for API misuse.
func ErrCallerError(code, message string) *DomainError {
	return &DomainError{
		Category: ErrCatCallerError,
		Code:     code,
		Message:  message,
	}
}

// ErrUnsupportedOn creates an error for a capability missing on goos.
func ErrUnsupportedOn(what, goos string) *DomainError {
	return &DomainError{
		Category: ErrCatUnsupported,
		Code:     CodeUnsupported,
		Message:  fmt.Sprintf("%s is not supported on %s", what, goos),
	}
}

// GetCategory extracts the error category.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// IsCategory checks if an error belongs to a category.
func IsCategory(err error, cat ErrorCategory) bool {
	return GetCategory(err) == cat
}

// Predefined error codes
const (
	CodeSuppressed      = "SUPPRESSED"
	CodeTerminated      = "TERMINATED"
	CodeNotInstalled    = "NOT_INSTALLED"
	CodeSessionActive   = "SESSION_ACTIVE"
	CodeSessionClosed   = "SESSION_CLOSED"
	CodeUnsupported     = "UNSUPPORTED"
	CodeUnknownKind     = "UNKNOWN_KIND"
	CodeUnknownHook     = "UNKNOWN_HOOK"
	CodeSnapshotFailed  = "SNAPSHOT_FAILED"
	CodeReportFailed    = "REPORT_FAILED"
	CodeSymbolsFailed   = "SYMBOLS_FAILED"
	CodeProbeFailed     = "PROBE_FAILED"
	CodeUnreadable      = "UNREADABLE_MEMORY"
	CodeInvalidArtifact = "INVALID_ARTIFACT"
	CodeInvalidConfig   = "INVALID_CONFIG"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrSuppressed is returned when the recursion guard has already fired
	// once in this process.
	ErrSuppressed = ErrPipelineFatal(CodeSuppressed, "report generation already attempted in this process")

	// ErrTerminated is returned only when the terminate disposition was
	// reached but the exit function returned (test stubs).
	ErrTerminated = ErrPipelineFatal(CodeTerminated, "terminate disposition reached")

	ErrNotInstalled  = ErrCallerError(CodeNotInstalled, "hooks are not installed")
	ErrSessionActive = ErrCallerError(CodeSessionActive, "symbol session already active")
	ErrSessionClosed = ErrCallerError(CodeSessionClosed, "symbol session not initialized")
	ErrUnreadable    = ErrDegraded(CodeUnreadable, "memory is not readable")
)
