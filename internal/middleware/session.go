package middleware

import (
	"strings"

	"github.com/M365x55907051/juice-shop/internal/auth"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/util"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionCookie is the cookie carrying the session token
const SessionCookie = "token"

// SessionToken returns the token from the session cookie or an
// Authorization: Bearer header
func SessionToken(c *gin.Context) string {
	if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
		return token
	}
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// SessionMiddleware resolves the caller's session. It never aborts: a missing
// or invalid token leaves the request anonymous and handlers decide.
func SessionMiddleware(authService auth.ServiceInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := &auth.Session{RemoteAddr: c.ClientIP()}

		if token := SessionToken(c); token != "" {
			user, err := authService.Authenticate(c.Request.Context(), token)
			if err != nil {
				logger.Log.Debug("Ignoring invalid session token",
					logger.WithIP(session.RemoteAddr),
					zap.Error(err),
				)
			} else {
				session.User = user
				session.Token = token
			}
		}

		util.SetSession(c, session)
		c.Next()
	}
}
