package auth

import (
	"context"

	"github.com/M365x55907051/juice-shop/internal/models"
)

// ServiceInterface defines the contract for authentication operations.
// Handlers depend on it so tests can substitute a fake.
type ServiceInterface interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)
