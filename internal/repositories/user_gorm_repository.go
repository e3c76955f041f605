package repositories

import (
	"context"
	"fmt"
	"time"

	"euphony/internal/apperr"
	"euphony/internal/models"

	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// GetAll retrieves all users with their roles.
func (r *GORMUserRepository) GetAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Preload("Roles").Order("username").Find(&users).Error; err != nil {
		return nil, translate("users.get_all", err, "")
	}
	return users, nil
}

// GetByID retrieves a user by their ID.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&user, "id = ?", id).Error; err != nil {
		return nil, translate("users.get", err, fmt.Sprintf("user with ID %s not found", id))
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&user, "username = ?", username).Error; err != nil {
		return nil, translate("users.get_by_username", err, fmt.Sprintf("user with username %s not found", username))
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Preload("Roles").First(&user, "email = ?", email).Error; err != nil {
		return nil, translate("users.get_by_email", err, fmt.Sprintf("user with email %s not found", email))
	}
	return &user, nil
}

func (r *GORMUserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate("users.exists", err, "")
	}
	return count > 0, nil
}

func (r *GORMUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error; err != nil {
		return 0, translate("users.count", err, "")
	}
	return count, nil
}

// Create inserts a user row. The ID must already be set to the identity
// provider's id; roles are attached separately with SetRoles.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		return apperr.New(apperr.KindValidation, "users.create", "user ID is required")
	}
	if err := r.db.WithContext(ctx).Omit("Roles").Create(user).Error; err != nil {
		return translate("users.create", err, "")
	}
	return nil
}

// Update writes the scalar columns of user. Roles are left untouched.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
		"username":   user.Username,
		"email":      user.Email,
		"first_name": user.FirstName,
		"last_name":  user.LastName,
		"active":     user.Active,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return translate("users.update", res.Error, "")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("users.update", fmt.Sprintf("user with ID %s not found for update", user.ID))
	}
	return nil
}

// SetRoles replaces the user's role associations.
func (r *GORMUserRepository) SetRoles(ctx context.Context, userID string, roles []models.Role) error {
	user := &models.User{ID: userID}
	if err := r.db.WithContext(ctx).Model(user).Association("Roles").Replace(roles); err != nil {
		return translate("users.set_roles", err, "")
	}
	return nil
}

// Delete removes the user row and its role links. Other dependents are the
// responsibility of their own repositories.
func (r *GORMUserRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.User{ID: id}).Association("Roles").Clear(); err != nil {
			return translate("users.delete", err, "")
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return translate("users.delete", res.Error, "")
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("users.delete", fmt.Sprintf("user with ID %s not found for deletion", id))
		}
		return nil
	})
}
