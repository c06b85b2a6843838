package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"

	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorRecoveryMiddleware turns panics into a structured 500 response and logs the stack
func ErrorRecoveryMiddleware(logger *observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				stackTrace := string(debug.Stack())

				panicErr, ok := recovered.(error)
				if !ok {
					panicErr = fmt.Errorf("panic: %v", recovered)
				}

				logger.Error(c.Request.Context(), "Panic recovered", panicErr, map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"stack":  stackTrace,
				})

				appErr := contextutils.NewAppErrorWithCause(
					contextutils.ErrorCodeInternalError,
					contextutils.SeverityFatal,
					"Internal server error",
					"A panic occurred while processing the request",
					panicErr,
				)
				if gin.Mode() == gin.DebugMode {
					appErr.Details = fmt.Sprintf("%s\nStack trace: %s", appErr.Details, stackTrace)
				}

				HandleAppError(c, appErr)
				c.Abort()
			}
		}()

		c.Next()
	}
}

// HandleAppError writes err as a structured JSON error. Errors that are not
// AppErrors become a 500 without leaking their text.
func HandleAppError(c *gin.Context, err error) {
	var appErr *contextutils.AppError
	if errors.As(err, &appErr) {
		StandardizeAppError(c, appErr)
		return
	}
	StandardizeHTTPError(c, http.StatusInternalServerError, "Internal server error", "")
}

// StandardizeAppError sends a structured error response using AppError
func StandardizeAppError(c *gin.Context, err *contextutils.AppError) {
	statusCode := HTTPStatusForCode(err.Code)

	errorJSON := err.ToJSON()
	// Internal details stay in the logs.
	if statusCode >= http.StatusInternalServerError {
		delete(errorJSON, "details")
	}

	c.JSON(statusCode, errorJSON)
}

// StandardizeHTTPError sends a structured error for a plain status code
func StandardizeHTTPError(c *gin.Context, statusCode int, message, details string) {
	var code contextutils.ErrorCode
	severity := contextutils.SeverityWarn

	switch statusCode {
	case http.StatusBadRequest:
		code = contextutils.ErrorCodeInvalidInput
	case http.StatusUnauthorized:
		code = contextutils.ErrorCodeUnauthorized
	case http.StatusForbidden:
		code = contextutils.ErrorCodeForbidden
	case http.StatusNotFound:
		code = contextutils.ErrorCodeRecordNotFound
		severity = contextutils.SeverityInfo
	case http.StatusConflict:
		code = contextutils.ErrorCodeConflict
		severity = contextutils.SeverityInfo
	case http.StatusServiceUnavailable:
		code = contextutils.ErrorCodeServiceUnavailable
		severity = contextutils.SeverityError
	default:
		code = contextutils.ErrorCodeInternalError
		severity = contextutils.SeverityError
	}

	c.JSON(statusCode, contextutils.NewAppError(code, severity, message, details).ToJSON())
}

// HTTPStatusForCode maps AppError codes to HTTP status codes
func HTTPStatusForCode(code contextutils.ErrorCode) int {
	switch code {
	case contextutils.ErrorCodeInvalidInput, contextutils.ErrorCodeMissingRequired,
		contextutils.ErrorCodeValidationFailed, contextutils.ErrorCodeFileTooLarge:
		return http.StatusBadRequest

	case contextutils.ErrorCodeUnauthorized, contextutils.ErrorCodeInvalidCredentials:
		return http.StatusUnauthorized

	case contextutils.ErrorCodeForbidden:
		return http.StatusForbidden

	case contextutils.ErrorCodeRecordNotFound:
		return http.StatusNotFound

	case contextutils.ErrorCodeRecordExists, contextutils.ErrorCodeConflict:
		return http.StatusConflict

	case contextutils.ErrorCodeTimeout:
		return http.StatusRequestTimeout

	case contextutils.ErrorCodeServiceUnavailable, contextutils.ErrorCodeDatabaseConnection:
		return http.StatusServiceUnavailable

	case contextutils.ErrorCodeNotificationFailed:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
