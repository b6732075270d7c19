package models

import "time"

// ImageSource records how a profile image was ingested
type ImageSource string

const (
	// ImageSourceFile is a multipart file upload
	ImageSourceFile ImageSource = "file"
	// ImageSourceURL is a remote image that was fetched and stored
	ImageSourceURL ImageSource = "url"
	// ImageSourceLink is a remote URL kept as-is because it could not be fetched
	ImageSourceLink ImageSource = "link"
)

// ProfileImage is the single current profile image of a user.
// Each accepted ingestion overwrites the row; no history is kept.
type ProfileImage struct {
	UserID      string      `gorm:"primaryKey;size:36" json:"user_id"`
	Source      ImageSource `gorm:"size:16;not null" json:"source"`
	Location    string      `gorm:"type:text;not null" json:"location"`
	StorageKey  string      `gorm:"type:text" json:"-"`
	ContentType string      `gorm:"size:128" json:"content_type"`
	Size        int64       `json:"size"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
