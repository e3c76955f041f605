package repositories

import (
	"context"
	"fmt"

	"euphony/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMRoleRepository is a GORM implementation of RoleRepository.
type GORMRoleRepository struct {
	db *gorm.DB
}

// NewGORMRoleRepository creates a new instance of GORMRoleRepository.
func NewGORMRoleRepository(db *gorm.DB) *GORMRoleRepository {
	return &GORMRoleRepository{db: db}
}

func (r *GORMRoleRepository) GetAll(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Order("name").Find(&roles).Error; err != nil {
		return nil, translate("roles.get_all", err, "")
	}
	return roles, nil
}

func (r *GORMRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).First(&role, "name = ?", name).Error; err != nil {
		return nil, translate("roles.get_by_name", err, fmt.Sprintf("role %s not found", name))
	}
	return &role, nil
}

// GetOrCreate upserts on the unique name so two first-time callers cannot
// both insert; the row is then read back to learn its ID.
func (r *GORMRoleRepository) GetOrCreate(ctx context.Context, name string) (*models.Role, error) {
	db := r.db.WithContext(ctx)
	insert := models.Role{Name: name}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&insert).Error
	if err != nil {
		return nil, translate("roles.get_or_create", err, "")
	}

	var role models.Role
	if err := db.First(&role, "name = ?", name).Error; err != nil {
		return nil, translate("roles.get_or_create", err, fmt.Sprintf("role %s not found", name))
	}
	return &role, nil
}
