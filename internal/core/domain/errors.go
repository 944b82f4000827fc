package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable, machine-readable code.
type DomainError struct {
	Code    string // Error code (e.g., "MB-CONN-5030")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Connection Errors (CONN)
// ============================================================================

var (
	// ErrConnectionUnavailable indicates the store is unreachable, the pool is
	// exhausted, or the subsystem never connected.
	ErrConnectionUnavailable = NewDomainError("MB-CONN-5030", "connection unavailable")

	// ErrHealthCheckFailed indicates a liveness check did not answer PONG.
	ErrHealthCheckFailed = NewDomainError("MB-CONN-5031", "health check failed")

	// ErrAuthFailed indicates the store rejected the configured credential.
	ErrAuthFailed = NewDomainError("MB-CONN-4010", "store authentication failed")
)

// ============================================================================
// Pool Errors (POOL)
// ============================================================================

var (
	// ErrPoolClosed indicates the pool has been shut down.
	ErrPoolClosed = NewDomainError("MB-POOL-5032", "connection pool closed")

	// ErrPoolExhausted indicates no connection became available within max_wait.
	ErrPoolExhausted = NewDomainError("MB-POOL-5040", "connection pool exhausted")
)

// ============================================================================
// Codec Errors (CODEC)
// ============================================================================

var (
	// ErrDeserialization indicates a payload does not match the requested shape.
	ErrDeserialization = NewDomainError("MB-CODEC-4220", "deserialization failed")

	// ErrSerialization indicates a value could not be encoded.
	ErrSerialization = NewDomainError("MB-CODEC-4221", "serialization failed")
)

// ============================================================================
// Store Errors (STORE)
// ============================================================================

var (
	// ErrOperationFailure indicates the store answered with an error reply.
	ErrOperationFailure = NewDomainError("MB-STORE-5000", "store operation failed")

	// ErrUnexpectedReply indicates the reply type did not match the command.
	ErrUnexpectedReply = NewDomainError("MB-STORE-5001", "unexpected store reply")
)

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrInvalidConfig indicates configuration validation failed.
	ErrInvalidConfig = NewDomainError("MB-CONF-4000", "invalid configuration")
)
