package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("MB-TEST-1000", "test message"),
			expected: "[MB-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("MB-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[MB-TEST-1001] test message: extra info",
		},
		{
			name:     "error with cause",
			err:      NewDomainError("MB-TEST-1002", "test message").WithCause(errors.New("dial tcp: refused")),
			expected: "[MB-TEST-1002] test message: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("MB-TEST-1000", "message 1")
	err2 := NewDomainError("MB-TEST-1000", "message 2")
	err3 := NewDomainError("MB-TEST-1001", "message 1")

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := ErrConnectionUnavailable.WithCause(cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !errors.Is(err, ErrConnectionUnavailable) {
		t.Error("errors.Is should match the sentinel by code")
	}
}

func TestDomainError_CopiesKeepSentinelUntouched(t *testing.T) {
	_ = ErrPoolClosed.WithCause(errors.New("boom")).WithDetails("acquire")

	if ErrPoolClosed.Cause != nil || ErrPoolClosed.Details != "" {
		t.Error("WithCause/WithDetails must not mutate the sentinel")
	}
}

func TestIsDomainError(t *testing.T) {
	wrapped := fmt.Errorf("cache get: %w", ErrDeserialization.WithDetails("int"))

	if !IsDomainError(wrapped, "MB-CODEC-4220") {
		t.Error("IsDomainError should see through fmt wrapping")
	}
	if !IsDomainError(wrapped, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(wrapped, "MB-CONN-5030") {
		t.Error("IsDomainError should not match a different code")
	}
	if IsDomainError(errors.New("plain"), "") {
		t.Error("IsDomainError should be false for plain errors")
	}
}

func TestGetErrorCode(t *testing.T) {
	if got := GetErrorCode(fmt.Errorf("x: %w", ErrOperationFailure)); got != "MB-STORE-5000" {
		t.Errorf("GetErrorCode() = %q, want MB-STORE-5000", got)
	}
	if got := GetErrorCode(errors.New("plain")); got != "" {
		t.Errorf("GetErrorCode() = %q, want empty", got)
	}
}

func TestPredefinedErrorsHaveUniqueCodes(t *testing.T) {
	all := []*DomainError{
		ErrConnectionUnavailable, ErrHealthCheckFailed, ErrAuthFailed,
		ErrPoolClosed, ErrPoolExhausted,
		ErrDeserialization, ErrSerialization,
		ErrOperationFailure, ErrUnexpectedReply,
		ErrInvalidConfig,
	}
	seen := make(map[string]bool)
	for _, e := range all {
		if seen[e.Code] {
			t.Errorf("duplicate error code %s", e.Code)
		}
		seen[e.Code] = true
	}
}
