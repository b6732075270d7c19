package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ContentTypeForExtension returns the MIME type for an image file extension
func ContentTypeForExtension(extension string) string {
	switch strings.ToLower(extension) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// ExtensionForContentType maps an image MIME type to the extension used for stored files
func ExtensionForContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "image/svg+xml":
		return ".svg"
	default:
		return ".jpg"
	}
}

// profileImageObjectName builds a fresh per-user object name, so a new upload
// never overwrites the object the current record points at
func profileImageObjectName(userID, extension string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\.`) {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	if !strings.HasPrefix(extension, ".") {
		extension = "." + extension
	}
	return userID + "-" + uuid.NewString() + strings.ToLower(extension), nil
}
