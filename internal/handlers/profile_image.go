package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/M365x55907051/juice-shop/internal/errors"
	"github.com/M365x55907051/juice-shop/internal/ingest"
	"github.com/M365x55907051/juice-shop/internal/models"
	"github.com/M365x55907051/juice-shop/internal/util"
	"github.com/gin-gonic/gin"
)

// UploadProfileImageFile replaces the caller's profile image with an uploaded file
// POST /profile/image/file (multipart, field "file")
func (h *Handlers) UploadProfileImageFile(c *gin.Context) {
	session := util.GetSessionFromContext(c)

	// Refuse anonymous callers before touching the body
	if apiErr := h.ingestor.Authorize(session); apiErr != nil {
		h.errorPage.Respond(c, h.ingestor.Reject(models.ImageSourceFile, apiErr))
		return
	}

	form, err := ingest.NewFormReader(c.Request)
	if err != nil {
		h.errorPage.Respond(c, h.ingestor.Reject(models.ImageSourceFile, err))
		return
	}

	file, declaredType, err := form.FilePart("file")
	if err != nil {
		h.errorPage.Respond(c, h.ingestor.Reject(models.ImageSourceFile, err))
		return
	}
	defer file.Close()

	result, err := h.ingestor.IngestFile(c.Request.Context(), session, file, declaredType)
	if err != nil {
		h.respondIngestError(c, err)
		return
	}

	c.Redirect(http.StatusFound, result.Redirect)
}

// UploadProfileImageURL points the caller's profile image at a remote URL
// POST /profile/image/url (multipart or urlencoded, field "imageUrl")
func (h *Handlers) UploadProfileImageURL(c *gin.Context) {
	session := util.GetSessionFromContext(c)

	if apiErr := h.ingestor.Authorize(session); apiErr != nil {
		h.errorPage.Respond(c, h.ingestor.Reject(models.ImageSourceURL, apiErr))
		return
	}

	imageURL, ok, err := ingest.ReadURLField(c.Request, "imageUrl")
	if err != nil {
		h.errorPage.Respond(c, h.ingestor.Reject(models.ImageSourceURL, err))
		return
	}
	if !ok {
		c.Redirect(http.StatusFound, h.ingestor.Policy().RedirectTo)
		return
	}

	result, err := h.ingestor.IngestURL(c.Request.Context(), session, imageURL)
	if err != nil {
		h.respondIngestError(c, err)
		return
	}

	c.Redirect(http.StatusFound, result.Redirect)
}

func (h *Handlers) respondIngestError(c *gin.Context, err error) {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		h.errorPage.Respond(c, apiErr)
		return
	}
	_ = c.Error(err)
	h.errorPage.RespondInternalError(c)
}
