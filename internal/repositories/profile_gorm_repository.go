package repositories

import (
	"context"
	"fmt"

	"euphony/internal/apperr"
	"euphony/internal/models"

	"gorm.io/gorm"
)

// GORMProfileRepository is a GORM implementation of ProfileRepository.
type GORMProfileRepository struct {
	db *gorm.DB
}

// NewGORMProfileRepository creates a new instance of GORMProfileRepository.
func NewGORMProfileRepository(db *gorm.DB) *GORMProfileRepository {
	return &GORMProfileRepository{db: db}
}

// GetAll retrieves all profiles together with their users.
func (r *GORMProfileRepository) GetAll(ctx context.Context) ([]models.Profile, error) {
	var profiles []models.Profile
	if err := r.db.WithContext(ctx).Preload("User.Roles").Order("id").Find(&profiles).Error; err != nil {
		return nil, translate("profiles.get_all", err, "")
	}
	return profiles, nil
}

func (r *GORMProfileRepository) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.WithContext(ctx).Preload("User.Roles").First(&profile, "user_id = ?", userID).Error
	if err != nil {
		return nil, translate("profiles.get", err, fmt.Sprintf("profile for user %s not found", userID))
	}
	return &profile, nil
}

func (r *GORMProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(profile).Error; err != nil {
		return translate("profiles.create", err, "")
	}
	return nil
}

// Update writes every editable column of profile.
func (r *GORMProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profile.ID).Updates(map[string]interface{}{
		"birth_date": profile.BirthDate,
		"country":    profile.Country,
		"image_url":  profile.ImageURL,
		"phone":      profile.Phone,
		"city":       profile.City,
	})
	if res.Error != nil {
		return translate("profiles.update", res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("profiles.update", fmt.Sprintf("profile with ID %d not found for update", profile.ID))
	}
	return nil
}

func (r *GORMProfileRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Profile{}, id)
	if res.Error != nil {
		return translate("profiles.delete", res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("profiles.delete", fmt.Sprintf("profile with ID %d not found for deletion", id))
	}
	return nil
}

func (r *GORMProfileRepository) DeleteByUserID(ctx context.Context, userID string) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Profile{}).Error; err != nil {
		return translate("profiles.delete_by_user", err, "")
	}
	return nil
}
