package services_test

import (
	"context"
	"errors"
	"testing"

	"euphony/internal/database"
	"euphony/internal/events"
	"euphony/internal/identity"
	"euphony/internal/logging"
	"euphony/internal/metrics"
	"euphony/internal/models"
	"euphony/internal/repositories"
	"euphony/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// MockGateway is a mock implementation of identity.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FindAll(ctx context.Context) ([]identity.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]identity.Record), args.Error(1)
}

func (m *MockGateway) FindByUsername(ctx context.Context, username string) (*identity.Record, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Record), args.Error(1)
}

func (m *MockGateway) FindByID(ctx context.Context, id string) (*identity.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Record), args.Error(1)
}

func (m *MockGateway) Create(ctx context.Context, fields identity.UserFields) (string, error) {
	args := m.Called(ctx, fields)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) SetPassword(ctx context.Context, id, password string) error {
	args := m.Called(ctx, id, password)
	return args.Error(0)
}

func (m *MockGateway) Update(ctx context.Context, id string, fields identity.UserFields) error {
	args := m.Called(ctx, id, fields)
	return args.Error(0)
}

func (m *MockGateway) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockGateway) AssignRoles(ctx context.Context, id string, names []string) ([]string, error) {
	args := m.Called(ctx, id, names)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) GetRoles(ctx context.Context, id string) ([]string, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGateway) Close() error {
	return m.Called().Error(0)
}

var errStore = errors.New("database is unavailable")

// faultyUsers wraps a real repository and fails the selected writes.
type faultyUsers struct {
	repositories.UserRepository
	failCreate error
	failUpdate error
	failDelete error
}

func (f *faultyUsers) Create(ctx context.Context, user *models.User) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	return f.UserRepository.Create(ctx, user)
}

func (f *faultyUsers) Update(ctx context.Context, user *models.User) error {
	if f.failUpdate != nil {
		return f.failUpdate
	}
	return f.UserRepository.Update(ctx, user)
}

func (f *faultyUsers) Delete(ctx context.Context, id string) error {
	if f.failDelete != nil {
		return f.failDelete
	}
	return f.UserRepository.Delete(ctx, id)
}

// testEnv is a user service on in-memory SQLite with an event recorder.
type testEnv struct {
	db        *gorm.DB
	users     *faultyUsers
	roles     *repositories.GORMRoleRepository
	profiles  *repositories.GORMProfileRepository
	playlists *repositories.GORMPlaylistRepository
	bus       *events.Bus
	published []events.Event
	svc       *services.UserService
	profSvc   *services.ProfileService
}

func newTestEnv(t *testing.T, gw identity.Gateway) *testEnv {
	t.Helper()
	db, err := database.OpenInMemory(uuid.NewString())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	logger := logging.Discard()
	env := &testEnv{
		db:        db,
		users:     &faultyUsers{UserRepository: repositories.NewGORMUserRepository(db)},
		roles:     repositories.NewGORMRoleRepository(db),
		profiles:  repositories.NewGORMProfileRepository(db),
		playlists: repositories.NewGORMPlaylistRepository(db),
		bus:       events.NewBus(logging.Component(logger, "bus"), metrics.New()),
	}
	env.bus.Subscribe("*", func(ctx context.Context, e events.Event) error {
		env.published = append(env.published, e)
		return nil
	})

	env.svc = services.NewUserService(services.UserServiceDeps{
		Users:     env.users,
		Roles:     env.roles,
		Profiles:  env.profiles,
		Playlists: env.playlists,
		Gateway:   gw,
		Bus:       env.bus,
		Logger:    logging.Component(logger, "users"),
		Metrics:   metrics.New(),
	})
	env.svc.RegisterListeners(env.bus)
	env.profSvc = services.NewProfileService(env.profiles, env.bus, logging.Component(logger, "profiles"))
	return env
}

func (e *testEnv) countUsers(t *testing.T) int64 {
	t.Helper()
	n, err := e.users.Count(context.Background())
	require.NoError(t, err)
	return n
}

func (e *testEnv) countProfiles(t *testing.T) int {
	t.Helper()
	all, err := e.profiles.GetAll(context.Background())
	require.NoError(t, err)
	return len(all)
}

func (e *testEnv) eventNames() []string {
	names := make([]string, 0, len(e.published))
	for _, ev := range e.published {
		names = append(names, ev.Name())
	}
	return names
}

// seedLocalUser writes a local user and profile without touching a gateway.
func (e *testEnv) seedLocalUser(t *testing.T, id, username string) *models.User {
	t.Helper()
	ctx := context.Background()
	user := &models.User{ID: id, Username: username, Email: username + "@x.com", FirstName: "First", Active: true}
	require.NoError(t, e.users.Create(ctx, user))
	require.NoError(t, e.profiles.Create(ctx, &models.Profile{UserID: id}))
	return user
}
