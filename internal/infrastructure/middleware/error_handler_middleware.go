package middleware

import (
	"net/http"

	"overlaycam/pkg/errors"
	"overlaycam/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware renders the last error a handler attached with
// c.Error. Errors that are not an AppError become a 500 without details.
func ErrorHandlerMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		reqLog := logger.FromContext(c.Request.Context(), log).With(
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)

		appErr := errors.GetAppError(err)
		if appErr == nil {
			reqLog.Errorw("unhandled error", "error", err)
			writeAppError(c, errors.NewInternalError("Internal server error"))
			return
		}

		fields := []interface{}{"code", appErr.Code, "status", appErr.HTTPStatus, "message", appErr.Message}
		if appErr.Cause != nil {
			fields = append(fields, "cause", appErr.Cause)
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			reqLog.Errorw("request failed", fields...)
		} else {
			reqLog.Debugw("request rejected", fields...)
		}
		writeAppError(c, appErr)
	}
}

// RecoveryMiddleware turns a panicking handler into a 500.
func RecoveryMiddleware(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.FromContext(c.Request.Context(), log).Errorw("panic recovered",
					"panic", rec,
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
				)
				abortWithAppError(c, errors.NewInternalError("Internal server error"))
			}
		}()

		c.Next()
	}
}

func writeAppError(c *gin.Context, appErr *errors.AppError) {
	c.JSON(appErr.HTTPStatus, gin.H{
		"error":   string(appErr.Code),
		"message": appErr.Message,
		"details": appErr.Context,
	})
}

// abortWithAppError is for middlewares that reject a request before any
// handler runs.
func abortWithAppError(c *gin.Context, appErr *errors.AppError) {
	writeAppError(c, appErr)
	c.Abort()
}
