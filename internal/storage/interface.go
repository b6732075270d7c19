package storage

import "context"

// ImageStore persists profile image bytes.
// This interface allows for easy mocking in tests
type ImageStore interface {
	// PutProfileImage writes the user's image, replacing any object with the same key
	PutProfileImage(ctx context.Context, userID, extension string, data []byte) (*UploadResult, error)
	DeleteFile(ctx context.Context, key string) error
	CheckAccess(ctx context.Context) error
}

// UploadResult contains the result of an upload
type UploadResult struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Ensure both backends implement ImageStore
var (
	_ ImageStore = (*S3Uploader)(nil)
	_ ImageStore = (*LocalStore)(nil)
)
