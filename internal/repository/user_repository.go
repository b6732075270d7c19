package repository

import (
	"context"
	"errors"
	"time"

	"github.com/M365x55907051/juice-shop/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidInput = errors.New("invalid input")
)

// UserRepository handles all database operations for users and their profile image
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	TouchLastLogin(ctx context.Context, userID string) error

	// SaveProfileImage replaces the user's profile image record
	SaveProfileImage(ctx context.Context, image *models.ProfileImage) error
	GetProfileImage(ctx context.Context, userID string) (*models.ProfileImage, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser creates a new user
func (r *userRepository) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil || user.Email == "" {
		return ErrInvalidInput
	}

	return r.db.WithContext(ctx).Create(user).Error
}

// GetUser gets a user by ID, with the profile image preloaded
func (r *userRepository) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("ProfileImage").
		Where("id = ?", userID).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// GetUserByEmail gets a user by email (case-insensitive)
func (r *userRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("ProfileImage").
		Where("LOWER(email) = LOWER(?)", email).
		First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// TouchLastLogin records a successful login
func (r *userRepository) TouchLastLogin(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_login_at", time.Now().UTC()).Error
}

// SaveProfileImage upserts the record keyed by user_id
func (r *userRepository) SaveProfileImage(ctx context.Context, image *models.ProfileImage) error {
	if image == nil || image.UserID == "" || image.Location == "" {
		return ErrInvalidInput
	}

	image.UpdatedAt = time.Now().UTC()

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"source", "location", "storage_key", "content_type", "size", "updated_at"}),
		}).
		Create(image).Error
}

// GetProfileImage returns the current record, or nil when the user has none
func (r *userRepository) GetProfileImage(ctx context.Context, userID string) (*models.ProfileImage, error) {
	var image models.ProfileImage
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&image).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &image, nil
}
