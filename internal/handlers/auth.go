package handlers

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/M365x55907051/juice-shop/internal/auth"
	"github.com/M365x55907051/juice-shop/internal/errors"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/metrics"
	"github.com/M365x55907051/juice-shop/internal/middleware"
	"github.com/M365x55907051/juice-shop/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoginRequest is the body of POST /rest/user/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates with email/password and issues a session token
// POST /rest/user/login
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondWithAPIError(c, errors.BadRequest("invalid login request"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if stderrors.Is(err, auth.ErrInvalidCredentials) {
		metrics.RecordLogin("invalid")
		util.RespondWithAPIError(c, errors.Unauthorized("Invalid email or password."))
		return
	}
	if err != nil {
		metrics.RecordLogin("error")
		logger.Log.Error("Login failed", zap.Error(err))
		util.RespondWithAPIError(c, errors.InternalError("login failed"))
		return
	}

	metrics.RecordLogin("success")
	logger.Log.Info("User logged in", logger.WithUserID(result.User.ID), logger.WithIP(c.ClientIP()))

	maxAge := int(time.Until(result.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, result.Token, maxAge, "/", "", c.Request.TLS != nil, true)

	c.JSON(http.StatusOK, gin.H{
		"authentication": gin.H{
			"token": result.Token,
			"umail": result.User.Email,
		},
	})
}

// Logout revokes the caller's session token
// POST /rest/user/logout
func (h *Handlers) Logout(c *gin.Context) {
	if token := middleware.SessionToken(c); token != "" {
		if err := h.auth.Logout(c.Request.Context(), token); err != nil {
			logger.Log.Warn("Failed to revoke session", zap.Error(err))
		}
	}

	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Status(http.StatusNoContent)
}

// WhoAmI describes the caller, or returns an empty user when anonymous
// GET /rest/user/whoami
func (h *Handlers) WhoAmI(c *gin.Context) {
	session := util.GetSessionFromContext(c)
	if !session.Authenticated() {
		c.JSON(http.StatusOK, gin.H{"user": gin.H{}})
		return
	}

	user := session.User
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":           user.ID,
			"email":        user.Email,
			"profileImage": user.ProfileImageLocation(),
		},
	})
}
