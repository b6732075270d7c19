package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultProfileImage is shown for users that never uploaded an image
const DefaultProfileImage = "/assets/public/images/uploads/default.svg"

// User represents a shop account
type User struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	Username     string `gorm:"not null;default:''" json:"username"`
	PasswordHash string `gorm:"type:text;not null" json:"-"`

	ProfileImage *ProfileImage `gorm:"foreignKey:UserID" json:"profile_image,omitempty"`

	LastLoginAt *time.Time `json:"last_login_at"`

	// GORM fields
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a UUID so ids do not depend on database extensions
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// ProfileImageLocation returns the image to render for the user
func (u *User) ProfileImageLocation() string {
	if u.ProfileImage == nil || u.ProfileImage.Location == "" {
		return DefaultProfileImage
	}
	return u.ProfileImage.Location
}
