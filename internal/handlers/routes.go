package handlers

import (
	"github.com/gin-gonic/gin"
)

// UploadsPath is where stored profile images are served from
const UploadsPath = "/assets/public/images/uploads"

// RouteOptions carries the per-group middleware
type RouteOptions struct {
	// Upload runs before both profile image endpoints
	Upload []gin.HandlerFunc
	// Login runs before the login endpoint
	Login []gin.HandlerFunc
}

// RegisterRoutes mounts the profile, auth, asset, and health routes on r
func (h *Handlers) RegisterRoutes(r gin.IRouter, opts RouteOptions) {
	profile := r.Group("/profile")
	{
		profile.GET("", h.ProfilePage)
		profile.POST("/image/file", append(opts.Upload, h.UploadProfileImageFile)...)
		profile.POST("/image/url", append(opts.Upload, h.UploadProfileImageURL)...)
	}

	rest := r.Group("/rest/user")
	{
		rest.POST("/login", append(opts.Login, h.Login)...)
		rest.POST("/logout", h.Logout)
		rest.GET("/whoami", h.WhoAmI)
	}

	r.GET(UploadsPath+"/*filepath", h.ServeUpload)
	r.GET("/health", h.Health)
}
