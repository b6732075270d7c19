package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/M365x55907051/juice-shop/internal/errors"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/util"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"
)

// ProfilePage renders the caller's profile with both image upload forms
// GET /profile
func (h *Handlers) ProfilePage(c *gin.Context) {
	session := util.GetSessionFromContext(c)
	if !session.Authenticated() {
		h.errorPage.Respond(c, errors.BlockedIllegalAccess(session.RemoteAddr))
		return
	}

	// The session user may predate the latest upload, reload it
	user, err := h.users.GetUser(c.Request.Context(), session.User.ID)
	if err != nil {
		logger.Log.Error("Failed to load profile", logger.WithUserID(session.User.ID), zap.Error(err))
		h.errorPage.RespondInternalError(c)
		return
	}

	c.Render(http.StatusOK, render.HTML{
		Template: pageTemplates,
		Name:     "profile.tmpl",
		Data: gin.H{
			"AppName":      h.appName,
			"Email":        user.Email,
			"Username":     user.Username,
			"ProfileImage": user.ProfileImageLocation(),
			"FileAction":   h.basePath + "/profile/image/file",
			"URLAction":    h.basePath + "/profile/image/url",
		},
	})
}

// ServeUpload serves stored profile images and the default avatar
// GET /assets/public/images/uploads/*filepath
func (h *Handlers) ServeUpload(c *gin.Context) {
	name := path.Clean("/" + c.Param("filepath"))

	if name == "/default.svg" {
		c.Header("Cache-Control", "public, max-age=86400")
		c.FileFromFS("assets/default.svg", http.FS(embedded))
		return
	}

	if h.uploadDir == "" || name == "/" || strings.HasPrefix(name, "/.") {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.FileFromFS(name, http.Dir(h.uploadDir))
}
