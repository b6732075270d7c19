package util

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/M365x55907051/juice-shop/internal/errors"
	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/gin-gonic/gin/render"
	"go.uber.org/zap"
)

//go:embed templates/error.tmpl
var templateFS embed.FS

var errorTemplate = template.Must(template.ParseFS(templateFS, "templates/error.tmpl"))

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Details string `json:"details,omitempty"`
}

// ErrorPage renders API errors for browsers and API clients
type ErrorPage struct {
	AppName string
	Banner  string
}

func logAPIError(c *gin.Context, apiErr *errors.APIError) {
	fields := []zap.Field{
		zap.String("code", string(apiErr.Code)),
		zap.String("message", apiErr.Message),
		logger.WithStatus(apiErr.Status),
		zap.String("path", c.Request.URL.Path),
	}
	if requestID := GetRequestID(c); requestID != "" {
		fields = append(fields, logger.WithRequestID(requestID))
	}

	if apiErr.Status >= http.StatusInternalServerError {
		logger.Log.Error("API error", fields...)
	} else if apiErr.Status >= http.StatusBadRequest {
		logger.Log.Warn("API error", fields...)
	}
}

// RespondWithAPIError sends a structured JSON error response
func RespondWithAPIError(c *gin.Context, apiErr *errors.APIError) {
	logAPIError(c, apiErr)

	c.AbortWithStatusJSON(apiErr.Status, ErrorResponse{
		Code:    string(apiErr.Code),
		Message: apiErr.Message,
		Details: apiErr.Details,
	})
}

// Respond sends the HTML error page, or JSON when the client prefers it
func (p ErrorPage) Respond(c *gin.Context, apiErr *errors.APIError) {
	if c.NegotiateFormat(binding.MIMEHTML, binding.MIMEJSON) == binding.MIMEJSON {
		RespondWithAPIError(c, apiErr)
		return
	}

	logAPIError(c, apiErr)

	c.Render(apiErr.Status, render.HTML{
		Template: errorTemplate,
		Name:     "error.tmpl",
		Data: gin.H{
			"AppName": p.AppName,
			"Banner":  p.Banner,
			"Status":  apiErr.Status,
			"Message": apiErr.Message,
		},
	})
	c.Abort()
}

// RespondInternalError sends a 500 error page
func (p ErrorPage) RespondInternalError(c *gin.Context) {
	p.Respond(c, errors.InternalError("internal server error"))
}
