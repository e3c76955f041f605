// Package identity talks to the external identity provider that owns user
// credentials and client role assignments.
package identity

import (
	"context"
	"strings"

	"euphony/internal/apperr"
)

// Record is a user as the identity provider sees it.
type Record struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	Enabled       bool     `json:"enabled"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles,omitempty"`
}

// Fields returns the writable part of r, used to restore a pre-image.
func (r *Record) Fields() UserFields {
	enabled := r.Enabled
	return UserFields{
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Enabled:   &enabled,
		Replace:   true,
	}
}

// UserFields is the writable profile of an identity. Blank strings and a nil
// Enabled leave the provider's value unchanged on update, unless Replace is
// set, in which case every string field is written as is.
type UserFields struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Enabled   *bool
	Replace   bool
}

// Credentials carries the secret set on an identity.
type Credentials struct {
	Password string
}

// Gateway is the capability interface over the identity provider. Every
// method is a blocking network call bounded by ctx.
type Gateway interface {
	FindAll(ctx context.Context) ([]Record, error)
	// FindByUsername fails with NotFound when no identity matches exactly.
	FindByUsername(ctx context.Context, username string) (*Record, error)
	FindByID(ctx context.Context, id string) (*Record, error)
	// Create fails with Conflict when the username or email is taken.
	Create(ctx context.Context, fields UserFields) (string, error)
	SetPassword(ctx context.Context, id, password string) error
	Update(ctx context.Context, id string, fields UserFields) error
	Delete(ctx context.Context, id string) error
	// AssignRoles maps the named client roles onto the identity. Names the
	// client does not define are skipped; when none resolve, the default
	// role is assigned. It returns the names actually assigned and fails
	// with NotFound when the client itself is not configured.
	AssignRoles(ctx context.Context, id string, names []string) ([]string, error)
	// GetRoles returns the client roles of the identity, empty when none
	// are mapped.
	GetRoles(ctx context.Context, id string) ([]string, error)
	// Close releases the connection pool.
	Close() error
}

// ValidateCreate checks the fields required to provision an identity.
func ValidateCreate(op string, fields UserFields, creds Credentials) error {
	errs := make(map[string]string)
	if strings.TrimSpace(fields.Username) == "" {
		errs["username"] = "username is required"
	}
	if strings.TrimSpace(fields.Email) == "" {
		errs["email"] = "email is required"
	}
	if strings.TrimSpace(creds.Password) == "" {
		errs["password"] = "password is required"
	}
	if len(errs) > 0 {
		return apperr.Validation(op, errs)
	}
	return nil
}

// Provision creates an identity, sets its password and assigns its roles.
// When a step after the create fails, the new identity is deleted again; a
// failed delete is reported as a critical inconsistency.
func Provision(ctx context.Context, gw Gateway, fields UserFields, creds Credentials, roles []string) (*Record, error) {
	const op = "identity.provision"
	if err := ValidateCreate(op, fields, creds); err != nil {
		return nil, err
	}

	id, err := gw.Create(ctx, fields)
	if err != nil {
		return nil, err
	}

	assigned, err := func() ([]string, error) {
		if err := gw.SetPassword(ctx, id, creds.Password); err != nil {
			return nil, err
		}
		return gw.AssignRoles(ctx, id, roles)
	}()
	if err != nil {
		if delErr := gw.Delete(context.WithoutCancel(ctx), id); delErr != nil && !apperr.Is(delErr, apperr.KindNotFound) {
			return nil, apperr.Wrap(apperr.KindCriticalInconsistency, op,
				"critical failure: identity "+id+" was created but could not be removed", delErr)
		}
		return nil, apperr.Wrap(apperr.KindCreation, op, "failed to provision identity", err)
	}

	return &Record{
		ID:            id,
		Username:      fields.Username,
		Email:         fields.Email,
		FirstName:     fields.FirstName,
		LastName:      fields.LastName,
		Enabled:       true,
		EmailVerified: true,
		Roles:         assigned,
	}, nil
}

// Reconfigure writes new profile fields and sets the password, which is
// required.
func Reconfigure(ctx context.Context, gw Gateway, id string, fields UserFields, creds Credentials) error {
	const op = "identity.reconfigure"
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(op, map[string]string{"id": "id is required"})
	}
	if err := ValidateCreate(op, fields, creds); err != nil {
		return err
	}
	if err := gw.Update(ctx, id, fields); err != nil {
		return err
	}
	return gw.SetPassword(ctx, id, creds.Password)
}
