package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"euphony/internal/apperr"
	"euphony/internal/events"
	"euphony/internal/identity"
	"euphony/internal/lock"
	"euphony/internal/logging"
	"euphony/internal/metrics"
	"euphony/internal/models"
	"euphony/internal/repositories"
	"euphony/internal/saga"

	"github.com/sirupsen/logrus"
)

// Saga step names, also used as metric labels.
const (
	stepIdentityCreate   = "identity.create"
	stepIdentityPassword = "identity.password"
	stepIdentityRoles    = "identity.roles"
	stepIdentityUpdate   = "identity.update"
	stepLocalUser        = "local.user"
	stepLocalProfile     = "local.profile"
	stepLocalRoles       = "local.roles"
)

// UserRequest is the input of user creation and update.
type UserRequest struct {
	Username  string   `json:"username" validate:"required,min=3,max=20"`
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required,min=8"`
	FirstName string   `json:"first_name" validate:"max=100"`
	LastName  string   `json:"last_name" validate:"max=100"`
	Roles     []string `json:"roles" validate:"dive,required"`
}

func (r UserRequest) fields() identity.UserFields {
	return identity.UserFields{
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

func (r UserRequest) credentials() identity.Credentials {
	return identity.Credentials{Password: r.Password}
}

// UserServiceDeps groups the collaborators of UserService.
type UserServiceDeps struct {
	Users     repositories.UserRepository
	Roles     repositories.RoleRepository
	Profiles  repositories.ProfileRepository
	Playlists repositories.PlaylistRepository
	Gateway   identity.Gateway
	Locker    lock.Locker
	Bus       *events.Bus
	Logger    *logrus.Entry
	Metrics   *metrics.Metrics
}

// UserService keeps the identity provider and the local user store in step.
// Create, Update and Delete run as sagas; Update and Delete hold a per-user
// lock for their whole duration.
type UserService struct {
	users     repositories.UserRepository
	roles     repositories.RoleRepository
	profiles  repositories.ProfileRepository
	playlists repositories.PlaylistRepository
	gateway   identity.Gateway
	locker    lock.Locker
	bus       *events.Bus
	logger    *logrus.Entry
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(d UserServiceDeps) *UserService {
	s := &UserService{
		users:     d.Users,
		roles:     d.Roles,
		profiles:  d.Profiles,
		playlists: d.Playlists,
		gateway:   d.Gateway,
		locker:    d.Locker,
		bus:       d.Bus,
		logger:    d.Logger,
		metrics:   d.Metrics,
		now:       time.Now,
	}
	if s.locker == nil {
		s.locker = lock.Noop{}
	}
	if s.logger == nil {
		s.logger = logging.Component(logging.Discard(), "users")
	}
	return s
}

// RegisterListeners subscribes the identity cleanup listener to bus.
func (s *UserService) RegisterListeners(bus *events.Bus) {
	bus.Subscribe(events.NameProfileDeleted, s.onProfileDeleted)
}

func (s *UserService) publish(ctx context.Context, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(ctx, event)
	}
}

// List retrieves all local users with their roles.
func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.users.GetAll(ctx)
}

// Get retrieves a local user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("users.get", map[string]string{"id": "id is required"})
	}
	return s.users.GetByID(ctx, id)
}

// Create provisions the identity, then the local user, its empty profile and
// its roles. A Conflict from the provider is returned as is, with nothing
// written locally. Any later failure removes what was created.
func (s *UserService) Create(ctx context.Context, req UserRequest) (*models.User, error) {
	const op = "users.create"
	if err := identity.ValidateCreate(op, req.fields(), req.credentials()); err != nil {
		return nil, err
	}

	log := s.logger.WithField("username", req.Username)
	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Active:    true,
	}
	var assigned []string

	run := saga.New("user.create", s.logger, s.metrics).
		Step(saga.Step{
			Name: stepIdentityCreate,
			Action: func(ctx context.Context) error {
				id, err := s.gateway.Create(ctx, req.fields())
				if err != nil {
					return err
				}
				user.ID = id
				return nil
			},
			Compensate: func(ctx context.Context) error {
				return ignoreNotFound(s.gateway.Delete(ctx, user.ID))
			},
		}).
		Step(saga.Step{
			Name: stepIdentityPassword,
			Action: func(ctx context.Context) error {
				return s.gateway.SetPassword(ctx, user.ID, req.Password)
			},
		}).
		Step(saga.Step{
			Name: stepLocalUser,
			Action: func(ctx context.Context) error {
				return s.users.Create(ctx, user)
			},
			Compensate: func(ctx context.Context) error {
				return ignoreNotFound(s.users.Delete(ctx, user.ID))
			},
		}).
		Step(saga.Step{
			Name: stepLocalProfile,
			Action: func(ctx context.Context) error {
				return s.profiles.Create(ctx, &models.Profile{UserID: user.ID})
			},
			Compensate: func(ctx context.Context) error {
				return s.profiles.DeleteByUserID(ctx, user.ID)
			},
		}).
		Step(saga.Step{
			Name: stepIdentityRoles,
			Action: func(ctx context.Context) error {
				var err error
				assigned, err = s.gateway.AssignRoles(ctx, user.ID, req.Roles)
				return err
			},
		}).
		Step(saga.Step{
			Name: stepLocalRoles,
			Action: func(ctx context.Context) error {
				roles, err := s.resolveRoles(ctx, assigned)
				if err != nil {
					return err
				}
				if err := s.users.SetRoles(ctx, user.ID, roles); err != nil {
					return err
				}
				user.Roles = roles
				return nil
			},
		})

	if err := run.Run(ctx); err != nil {
		if apperr.Is(err, apperr.KindCriticalInconsistency) {
			log.WithField("user_id", user.ID).WithError(err).Error("user creation left an orphaned identity")
			return nil, err
		}
		if failure, ok := saga.AsFailure(err); ok && failure.Step == stepIdentityCreate {
			switch apperr.KindOf(failure.Err) {
			case apperr.KindConflict, apperr.KindValidation:
				log.WithError(failure.Err).Warn("identity provider rejected the user")
				return nil, failure.Err
			}
			return nil, apperr.Wrap(apperr.KindInternal, op, "failed to create the identity", failure.Err)
		}
		log.WithField("user_id", user.ID).WithError(err).Error("user creation rolled back")
		return nil, apperr.Wrap(apperr.KindCreation, op,
			"failed to create the user, please contact the administrator", err)
	}

	log.WithField("user_id", user.ID).WithField("roles", assigned).Info("user created")
	s.publish(ctx, events.UserCreated{
		UserID:     user.ID,
		Username:   user.Username,
		Roles:      assigned,
		OccurredAt: s.now(),
	})
	return user, nil
}

// resolveRoles gets or creates a local role for every name.
func (s *UserService) resolveRoles(ctx context.Context, names []string) ([]models.Role, error) {
	roles := make([]models.Role, 0, len(names))
	for _, name := range names {
		role, err := s.roles.GetOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

// Update writes the new representation to the provider, then applies the
// non-blank fields locally. When the local write fails the provider's
// previous representation is restored.
func (s *UserService) Update(ctx context.Context, id string, req UserRequest) (*models.User, error) {
	const op = "users.update"
	if err := identity.ValidateCreate(op, req.fields(), req.credentials()); err != nil {
		return nil, err
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpdate, op, "user is being modified by another request", err)
	}
	defer unlock()

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithField("user_id", id)
	before, err := s.gateway.FindByID(ctx, id)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpdate, op, "failed to read the current identity", err)
	}

	updated := *user
	applyNonBlank(&updated.Username, req.Username)
	applyNonBlank(&updated.Email, req.Email)
	applyNonBlank(&updated.FirstName, req.FirstName)
	applyNonBlank(&updated.LastName, req.LastName)

	run := saga.New("user.update", s.logger, s.metrics).
		Step(saga.Step{
			Name: stepIdentityUpdate,
			Action: func(ctx context.Context) error {
				return s.gateway.Update(ctx, id, req.fields())
			},
			Compensate: func(ctx context.Context) error {
				return s.gateway.Update(ctx, id, before.Fields())
			},
		}).
		Step(saga.Step{
			Name: stepLocalUser,
			Action: func(ctx context.Context) error {
				return s.users.Update(ctx, &updated)
			},
		})

	if err := run.Run(ctx); err != nil {
		if apperr.Is(err, apperr.KindCriticalInconsistency) {
			log.WithError(err).Error("user update could not be reverted in the identity provider")
			return nil, err
		}
		if failure, ok := saga.AsFailure(err); ok && failure.Step == stepIdentityUpdate {
			log.WithError(failure.Err).Warn("identity provider update failed")
			return nil, apperr.Wrap(apperr.KindUpdate, op, "failed to update the identity", failure.Err)
		}
		log.WithError(err).Error("local user update failed, identity restored")
		return nil, apperr.Wrap(apperr.KindUpdate, op, "failed to update the user", err)
	}

	log.Info("user updated")
	s.publish(ctx, events.UserUpdated{UserID: id, OccurredAt: s.now()})
	return &updated, nil
}

// Delete removes the identity and then the local user with everything it
// owns. The identity provider decides existence: if its delete fails the
// local rows stay; if the local cleanup fails afterwards the stores
// disagree and a critical inconsistency is reported.
func (s *UserService) Delete(ctx context.Context, id string) error {
	const op = "users.delete"
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(op, map[string]string{"id": "id is required"})
	}

	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDeletion, op, "user is being modified by another request", err)
	}
	defer unlock()

	if _, err := s.users.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.removeIdentity(ctx, id); err != nil {
		return err
	}

	if err := s.removeLocal(ctx, id); err != nil {
		s.logger.WithField("user_id", id).WithError(err).Error("identity removed but local user remains")
		return apperr.Wrap(apperr.KindCriticalInconsistency, op,
			"critical failure: the identity was deleted but the local user could not be removed", err)
	}

	s.logger.WithField("user_id", id).Info("user deleted")
	s.publish(ctx, events.UserDeleted{UserID: id, OccurredAt: s.now()})
	return nil
}

// RemoveIdentity deletes the provider identity of id under the user lock.
// An identity that is already gone counts as removed. Both the direct
// delete and the profile-deleted listener go through here.
func (s *UserService) RemoveIdentity(ctx context.Context, id string) error {
	unlock, err := s.locker.Lock(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDeletion, "users.remove_identity", "user is being modified by another request", err)
	}
	defer unlock()
	return s.removeIdentity(ctx, id)
}

func (s *UserService) removeIdentity(ctx context.Context, id string) error {
	err := s.gateway.Delete(ctx, id)
	switch {
	case err == nil:
		return nil
	case apperr.Is(err, apperr.KindNotFound):
		s.logger.WithField("user_id", id).Info("identity already removed")
		return nil
	default:
		return apperr.Wrap(apperr.KindDeletion, "users.remove_identity", "failed to delete the identity", err)
	}
}

// removeLocal deletes the user's dependents, then the user row.
func (s *UserService) removeLocal(ctx context.Context, id string) error {
	if err := s.profiles.DeleteByUserID(ctx, id); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if s.playlists != nil {
		if err := s.playlists.DeleteByOwner(ctx, id); err != nil {
			return fmt.Errorf("delete playlists: %w", err)
		}
	}
	if err := ignoreNotFound(s.users.Delete(ctx, id)); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *UserService) onProfileDeleted(ctx context.Context, event events.Event) error {
	e, ok := event.(events.ProfileDeleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", event)
	}
	if err := s.RemoveIdentity(ctx, e.UserID); err != nil {
		return err
	}
	s.logger.WithField("user_id", e.UserID).Info("identity removed after profile deletion")
	return nil
}

func applyNonBlank(dst *string, value string) {
	if strings.TrimSpace(value) != "" {
		*dst = value
	}
}

func ignoreNotFound(err error) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	return err
}
