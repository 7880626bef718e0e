package middleware

import (
	"strings"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/services"
	"overlaycam/pkg/errors"
	"overlaycam/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	ContextOperatorID = "operator_id"
	ContextRole       = "role"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		// Browsers cannot set headers on websocket upgrades.
		if token := c.Query("access_token"); token != "" {
			return token, true
		}
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			abortWithAppError(c, errors.NewUnauthorizedError("authorization header required"))
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			abortWithAppError(c, errors.NewUnauthorizedError(err.Error()))
			return
		}

		setOperator(c, claims.OperatorID, claims.Role)
		c.Next()
	}
}

// AnonymousOperatorMiddleware grants full control when auth is disabled.
func AnonymousOperatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		setOperator(c, "anonymous", domain.RoleOperator)
		c.Next()
	}
}

func setOperator(c *gin.Context, id domain.OperatorID, role domain.OperatorRole) {
	c.Set(ContextOperatorID, id)
	c.Set(ContextRole, role)
	c.Request = c.Request.WithContext(logger.WithOperator(c.Request.Context(), string(id)))
}

// RequireControl rejects callers whose role may only watch.
func RequireControl() gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get(ContextRole)
		if !exists {
			abortWithAppError(c, errors.NewUnauthorizedError("authentication required"))
			return
		}

		role, ok := roleVal.(domain.OperatorRole)
		if !ok || !role.CanControl() {
			abortWithAppError(c, errors.NewForbiddenError("insufficient permissions"))
			return
		}

		c.Next()
	}
}
