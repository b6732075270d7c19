package util

import (
	"github.com/M365x55907051/juice-shop/internal/auth"
	"github.com/gin-gonic/gin"
)

const (
	sessionContextKey   = "session"
	requestIDContextKey = "request_id"
)

// SetSession stores the resolved session for downstream handlers
func SetSession(c *gin.Context, session *auth.Session) {
	c.Set(sessionContextKey, session)
	if session.Authenticated() {
		c.Set("user_id", session.User.ID)
	}
}

// GetSessionFromContext returns the request's session. Requests that did not
// pass through the session middleware get an anonymous session.
func GetSessionFromContext(c *gin.Context) *auth.Session {
	if value, exists := c.Get(sessionContextKey); exists {
		if session, ok := value.(*auth.Session); ok && session != nil {
			return session
		}
	}
	return &auth.Session{RemoteAddr: c.ClientIP()}
}

// GetUserIDFromContext returns the authenticated user's ID, if any
func GetUserIDFromContext(c *gin.Context) (string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	userIDStr, ok := userID.(string)
	return userIDStr, ok && userIDStr != ""
}

// GetRequestID returns the ID assigned by the request ID middleware
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDContextKey)
}
