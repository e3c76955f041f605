package repositories

import (
	"context"

	"euphony/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	GetAll(ctx context.Context) ([]models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetRoles(ctx context.Context, userID string, roles []models.Role) error
	Delete(ctx context.Context, id string) error
}

// RoleRepository defines the interface for role data access.
type RoleRepository interface {
	GetAll(ctx context.Context) ([]models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	// GetOrCreate returns the role named name, inserting it when missing.
	// Concurrent first use of a name is safe.
	GetOrCreate(ctx context.Context, name string) (*models.Role, error)
}
