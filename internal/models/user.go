package models

import "time"

// User is the local record of an identity held by the identity provider.
// ID is the provider-assigned UUID.
type User struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(50);not null"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255);not null"`
	FirstName string    `json:"first_name" gorm:"type:varchar(100)"`
	LastName  string    `json:"last_name" gorm:"type:varchar(100)"`
	Active    bool      `json:"active" gorm:"not null"`
	Roles     []Role    `json:"roles" gorm:"many2many:user_roles;"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleNames returns the names of the user's roles.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// Role is a named permission, mirrored from the identity provider's client
// roles.
type Role struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;type:varchar(50);not null"`
}

// Profile is the one-to-one extension of a User.
type Profile struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	UserID    string     `json:"user_id" gorm:"uniqueIndex;type:varchar(36);not null"`
	User      *User      `json:"user,omitempty" gorm:"foreignKey:UserID"`
	BirthDate *time.Time `json:"birth_date"`
	Country   string     `json:"country" gorm:"type:varchar(100)"`
	ImageURL  string     `json:"image_url"`
	Phone     string     `json:"phone" gorm:"type:varchar(20)"`
	City      string     `json:"city" gorm:"type:varchar(100)"`
}
