package contextutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		expected string
	}{
		{
			name: "error with details",
			appError: &AppError{
				Code:     ErrorCodeInvalidInput,
				Severity: SeverityError,
				Message:  "Invalid input",
				Details:  "Field 'title' is required",
			},
			expected: "INVALID_INPUT: Invalid input - Field 'title' is required",
		},
		{
			name: "error without details",
			appError: &AppError{
				Code:     ErrorCodeRecordNotFound,
				Severity: SeverityInfo,
				Message:  "Record not found",
			},
			expected: "RECORD_NOT_FOUND: Record not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appError.Error())
		})
	}
}

func TestAppError_Is(t *testing.T) {
	err1 := &AppError{Code: ErrorCodeConflict}
	err2 := &AppError{Code: ErrorCodeConflict}
	err3 := &AppError{Code: ErrorCodeRecordNotFound}

	assert.True(t, err1.Is(err2))
	assert.False(t, err1.Is(err3))
	assert.False(t, err1.Is(errors.New("regular error")))
}

func TestNewAppErrorWithCause(t *testing.T) {
	cause := errors.New("database error")
	err := NewAppErrorWithCause(ErrorCodeDatabaseConnection, SeverityError, "DB connection failed", "Connection timeout", cause)

	assert.Equal(t, ErrorCodeDatabaseConnection, err.Code)
	assert.Equal(t, "Connection timeout", err.Details)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))

	t.Run("app error keeps its code", func(t *testing.T) {
		wrapped := WrapError(ErrForbidden, "only the assigned solver may resolve")
		assert.True(t, errors.Is(wrapped, ErrForbidden))
		assert.Equal(t, ErrorCodeForbidden, GetErrorCode(wrapped))
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		wrapped := WrapError(errors.New("boom"), "loading complaint")
		assert.Equal(t, ErrorCodeInternalError, GetErrorCode(wrapped))
		assert.Contains(t, wrapped.Error(), "boom")
	})
}

func TestWrapErrorf(t *testing.T) {
	wrapped := WrapErrorf(ErrRecordNotFound, "complaint %d not found", 42)
	assert.True(t, errors.Is(wrapped, ErrRecordNotFound))
	assert.Contains(t, wrapped.Error(), "complaint 42 not found")

	cause := errors.New("connection reset")
	withVerb := WrapErrorf(cause, "failed to insert complaint: %w", cause)
	assert.True(t, errors.Is(withVerb, cause))
	assert.Equal(t, ErrorCodeInternalError, GetErrorCode(withVerb))

	twice := WrapErrorf(WrapErrorf(ErrConflict, "inner"), "outer")
	assert.True(t, errors.Is(twice, ErrConflict))
}

func TestIsError(t *testing.T) {
	assert.True(t, IsError(ErrValidationFailed, ErrValidationFailed))
	assert.True(t, IsError(fmt.Errorf("ctx: %w", ErrFileTooLarge), ErrFileTooLarge))
	assert.False(t, IsError(errors.New("plain"), ErrValidationFailed))
}

func TestGetErrorSeverity(t *testing.T) {
	assert.Equal(t, SeverityInfo, GetErrorSeverity(ErrRecordNotFound))
	assert.Equal(t, SeverityError, GetErrorSeverity(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewAppError(ErrorCodeTimeout, SeverityWarn, "Request timeout", "")))
	assert.True(t, IsRetryable(ErrDatabaseConnection))
	assert.False(t, IsRetryable(ErrConflict))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(NewAppError(ErrorCodeTimeout, SeverityFatal, "fatal timeout", "")))
}

func TestAppError_ToJSON(t *testing.T) {
	err := NewAppError(ErrorCodeValidationFailed, SeverityWarn, "Validation failed", "title is required")
	result := err.ToJSON()

	assert.Equal(t, "VALIDATION_FAILED", result["code"])
	assert.Equal(t, "Validation failed", result["message"])
	assert.Equal(t, "Validation failed", result["error"])
	assert.Equal(t, "title is required", result["details"])
	assert.Equal(t, false, result["retryable"])
}
