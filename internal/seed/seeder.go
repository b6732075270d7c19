package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/M365x55907051/juice-shop/internal/logger"
	"github.com/M365x55907051/juice-shop/internal/models"
	"github.com/M365x55907051/juice-shop/internal/repository"
	"github.com/brianvoe/gofakeit/v7"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DemoUser is a fixed account created on every seeded database
type DemoUser struct {
	Name     string
	Password string
}

// DemoUsers are created as <name>@<domain>
var DemoUsers = []DemoUser{
	{Name: "admin", Password: "admin123"},
	{Name: "jim", Password: "ncc-1701"},
	{Name: "bender", Password: "OhG0dPlease1nsertLiquor!"},
}

// fakePassword is the password of generated users
const fakePassword = "password123"

// Seeder handles database seeding operations
type Seeder struct {
	users repository.UserRepository
	cost  int
}

// NewSeeder creates a new seeder instance
func NewSeeder(users repository.UserRepository) *Seeder {
	// Seed returns an error only for invalid sources
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{users: users, cost: bcrypt.DefaultCost}
}

// Seed creates the demo users for domain plus fakeCount generated users.
// Existing accounts are left untouched so it is safe to run on every start.
func (s *Seeder) Seed(ctx context.Context, domain string, fakeCount int) error {
	created := 0

	for _, demo := range DemoUsers {
		ok, err := s.ensureUser(ctx, demo.Name+"@"+domain, demo.Name, demo.Password)
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", demo.Name, err)
		}
		if ok {
			created++
		}
	}

	for i := 0; i < fakeCount; i++ {
		username := gofakeit.Username()
		ok, err := s.ensureUser(ctx, gofakeit.Email(), username, fakePassword)
		if err != nil {
			return fmt.Errorf("failed to seed fake user: %w", err)
		}
		if ok {
			created++
		}
	}

	logger.Log.Info("Seeded users",
		zap.String("domain", domain),
		zap.Int("created", created),
	)
	return nil
}

// ensureUser creates the account unless the email is taken
func (s *Seeder) ensureUser(ctx context.Context, email, username, password string) (bool, error) {
	_, err := s.users.GetUserByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return false, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return false, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return false, err
	}
	return true, nil
}
