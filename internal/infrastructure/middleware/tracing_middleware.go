package middleware

import (
	"net/http"

	"overlaycam/pkg/logger"
	"overlaycam/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// TracingMiddleware opens a server span per request, continuing the caller's
// trace when it sent one.
func TracingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx := tracing.ExtractHTTP(c.Request.Context(), c.Request.Header)
		ctx, span := tracing.TraceHTTPRequest(ctx, c.Request.Method, route)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.remote_addr", clientIP(c.Request)),
			attribute.Bool("http.websocket", websocket.IsWebSocketUpgrade(c.Request)),
		)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if operator, ok := logger.OperatorFromContext(c.Request.Context()); ok {
			span.SetAttributes(tracing.OperatorIDKey.String(operator))
		}
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, c.Errors.String())
		}
	}
}
