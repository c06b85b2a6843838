package middleware

import (
	"bytes"
	"io"

	"metronix/internal/observability"
	contextutils "metronix/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// maxJSONBodyBytes caps JSON request bodies read for validation
const maxJSONBodyBytes = 1 << 20

// ValidateJSONBody checks the request body against the named embedded schema
// and restores it for the handler. An unknown schema name panics at startup.
func ValidateJSONBody(schemaName string, logger *observability.Logger) gin.HandlerFunc {
	loader, err := RequestSchemas()
	if err != nil {
		panic("request schemas failed to load: " + err.Error())
	}
	if !loader.Has(schemaName) {
		panic("unknown request schema: " + schemaName)
	}

	return func(c *gin.Context) {
		ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "request_validation",
			attribute.String("schema.name", schemaName))
		defer span.End()

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxJSONBodyBytes+1))
		if err != nil {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "failed to read request body"))
			c.Abort()
			return
		}
		if len(body) > maxJSONBodyBytes {
			HandleAppError(c, contextutils.WrapError(contextutils.ErrInvalidInput, "request body too large"))
			c.Abort()
			return
		}
		if len(bytes.TrimSpace(body)) == 0 {
			body = []byte("{}")
		}

		if err := loader.ValidateJSON(body, schemaName); err != nil {
			span.SetAttributes(attribute.Bool("validation.failed", true))
			logger.Warn(ctx, "Request validation failed", map[string]interface{}{
				"method":      c.Request.Method,
				"path":        c.Request.URL.Path,
				"schema_name": schemaName,
				"error":       err.Error(),
			})
			HandleAppError(c, err)
			c.Abort()
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
