package repositories

import (
	"context"

	"euphony/internal/models"
)

// ProfileRepository defines the interface for profile data access.
type ProfileRepository interface {
	GetAll(ctx context.Context) ([]models.Profile, error)
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
	Delete(ctx context.Context, id uint) error
	// DeleteByUserID removes the profile of userID. A missing profile is not
	// an error.
	DeleteByUserID(ctx context.Context, userID string) error
}
