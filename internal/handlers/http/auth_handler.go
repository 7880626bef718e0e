package http

import (
	stderrors "errors"
	"net/http"
	"strings"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/services"
	"overlaycam/pkg/errors"
	"overlaycam/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

func (h *AuthHandler) SetupRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/login", h.Login)
		api.POST("/refresh", h.RefreshToken)
	}
}

type LoginRequest struct {
	OperatorID string `json:"operator_id" binding:"required,max=64"`
	Secret     string `json:"secret" binding:"required,max=256"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required,max=2048"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.NewInvalidInputError("invalid request format"))
		return
	}

	req.OperatorID = strings.TrimSpace(req.OperatorID)
	if err := validation.ValidateOperatorID(req.OperatorID); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}
	if err := validation.ValidateSecret(req.Secret); err != nil {
		abortWithError(c, errors.NewInvalidInputError(err.Error()))
		return
	}

	pair, err := h.authService.Login(domain.OperatorID(req.OperatorID), req.Secret)
	if err != nil {
		if stderrors.Is(err, services.ErrInvalidCredentials) {
			abortWithError(c, errors.NewUnauthorizedError("invalid credentials"))
			return
		}
		abortWithError(c, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errors.NewInvalidInputError("invalid request format"))
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		abortWithError(c, errors.NewUnauthorizedError("invalid refresh token"))
		return
	}

	accessToken, err := h.authService.GenerateToken(claims.OperatorID, claims.Role)
	if err != nil {
		abortWithError(c, errors.Wrap(err, errors.ErrCodeInternal, "failed to generate token"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.authService.AccessTokenTTL().Seconds()),
	})
}
