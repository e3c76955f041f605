package services

import (
	"context"
	"strings"

	"euphony/internal/apperr"
	"euphony/internal/identity"
	"euphony/internal/logging"

	"github.com/sirupsen/logrus"
)

// IdentityService exposes identity provider administration. It works on
// identities only and never touches the local user store.
type IdentityService struct {
	gateway identity.Gateway
	logger  *logrus.Entry
}

// NewIdentityService creates a new IdentityService.
func NewIdentityService(gateway identity.Gateway, logger *logrus.Entry) *IdentityService {
	if logger == nil {
		logger = logging.Component(logging.Discard(), "identity-admin")
	}
	return &IdentityService{gateway: gateway, logger: logger}
}

func (s *IdentityService) List(ctx context.Context) ([]identity.Record, error) {
	return s.gateway.FindAll(ctx)
}

func (s *IdentityService) FindByUsername(ctx context.Context, username string) (*identity.Record, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperr.Validation("identities.find", map[string]string{"username": "username is required"})
	}
	return s.gateway.FindByUsername(ctx, username)
}

// Create provisions an identity with its password and roles.
func (s *IdentityService) Create(ctx context.Context, req UserRequest) (*identity.Record, error) {
	record, err := identity.Provision(ctx, s.gateway, req.fields(), req.credentials(), req.Roles)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("user_id", record.ID).WithField("username", record.Username).Info("identity created")
	return record, nil
}

// Update replaces the identity's profile fields and password.
func (s *IdentityService) Update(ctx context.Context, id string, req UserRequest) error {
	if err := identity.Reconfigure(ctx, s.gateway, id, req.fields(), req.credentials()); err != nil {
		return err
	}
	s.logger.WithField("user_id", id).Info("identity updated")
	return nil
}

func (s *IdentityService) Delete(ctx context.Context, id string) error {
	if err := s.gateway.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("user_id", id).Info("identity deleted")
	return nil
}

// Roles returns the client roles of the identity.
func (s *IdentityService) Roles(ctx context.Context, id string) ([]string, error) {
	return s.gateway.GetRoles(ctx, id)
}
