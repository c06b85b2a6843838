package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"metronix/internal/middleware"
	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/gin-gonic/gin"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

// HandleAppError writes err as a structured JSON error response
func HandleAppError(c *gin.Context, err error) {
	middleware.HandleAppError(c, err)
}

// HandleValidationError handles input validation errors consistently
func HandleValidationError(c *gin.Context, field string, value interface{}, reason string) {
	appErr := contextutils.NewAppError(
		contextutils.ErrorCodeInvalidInput,
		contextutils.SeverityWarn,
		fmt.Sprintf("Invalid %s", field),
		fmt.Sprintf("Value '%v' is invalid: %s", value, reason),
	)
	middleware.StandardizeAppError(c, appErr)
}

// respondError logs failures the client cannot fix and writes the error response
func respondError(ctx context.Context, c *gin.Context, logger *observability.Logger, msg string, err error, fields map[string]interface{}) {
	var appErr *contextutils.AppError
	if !errors.As(err, &appErr) || middleware.HTTPStatusForCode(appErr.Code) >= http.StatusInternalServerError {
		logger.Error(ctx, msg, err, fields)
	}
	HandleAppError(c, err)
}

// bindJSON decodes the request body into dest and writes a 400 when it cannot
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		if errors.Is(err, openapi_types.ErrValidationEmail) {
			HandleValidationError(c, "email", "", "not a valid email address")
			return false
		}
		HandleAppError(c, contextutils.NewAppErrorWithCause(
			contextutils.ErrorCodeInvalidInput,
			contextutils.SeverityWarn,
			"Invalid request body",
			"",
			err,
		))
		return false
	}
	return true
}
