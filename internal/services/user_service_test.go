package services_test

import (
	"context"
	"errors"
	"testing"

	"euphony/internal/apperr"
	"euphony/internal/events"
	"euphony/internal/identity"
	"euphony/internal/models"
	"euphony/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var jdoe = services.UserRequest{
	Username: "jdoe",
	Email:    "jdoe@x.com",
	Password: "secret123",
}

func TestUserService_Create_AssignsDefaultRole(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role", "artist_client_role")
	env := newTestEnv(t, gw)

	user, err := env.svc.Create(ctx, jdoe)
	require.NoError(t, err)

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"default_role"}, stored.RoleNames())

	profile, err := env.profiles.GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, profile.UserID)

	record, err := gw.FindByUsername(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, user.ID, record.ID)
	assert.Equal(t, []string{"default_role"}, record.Roles)
	assert.Equal(t, "secret123", gw.Password(user.ID))

	assert.Equal(t, []string{events.NameUserCreated}, env.eventNames())
}

func TestUserService_Create_RequestedRoles(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, identity.NewMemory("default_role", "artist_client_role"))

	req := jdoe
	req.Roles = []string{"artist_client_role"}
	user, err := env.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"artist_client_role"}, user.RoleNames())

	// A second user with the same role reuses the local role row.
	other := services.UserRequest{Username: "band", Email: "band@x.com", Password: "secret123", Roles: req.Roles}
	_, err = env.svc.Create(ctx, other)
	require.NoError(t, err)
	roles, err := env.roles.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestUserService_Create_DuplicateUsernameIsConflict(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)

	_, err := gw.Create(ctx, identity.UserFields{Username: "jdoe", Email: "existing@x.com"})
	require.NoError(t, err)
	usersBefore, profilesBefore := env.countUsers(t), env.countProfiles(t)

	_, err = env.svc.Create(ctx, jdoe)
	assert.True(t, apperr.Is(err, apperr.KindConflict), "got %v", err)
	assert.Equal(t, usersBefore, env.countUsers(t))
	assert.Equal(t, profilesBefore, env.countProfiles(t))
	assert.Empty(t, env.published)
}

func TestUserService_Create_ValidationRejectedBeforeProvider(t *testing.T) {
	gw := new(MockGateway)
	env := newTestEnv(t, gw)

	_, err := env.svc.Create(context.Background(), services.UserRequest{Username: "jdoe", Email: " "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Contains(t, apperr.FieldsOf(err), "email")
	assert.Contains(t, apperr.FieldsOf(err), "password")
	gw.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUserService_Create_ProviderFailureIsInternal(t *testing.T) {
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	gw.On("Create", mock.Anything, mock.Anything).Return("", apperr.Internal("identity.create", errors.New("connection refused")))

	_, err := env.svc.Create(context.Background(), jdoe)
	assert.True(t, apperr.Is(err, apperr.KindInternal))
	assert.Zero(t, env.countUsers(t))
	gw.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestUserService_Create_LocalFailureRemovesIdentity(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	env.users.failCreate = errStore

	_, err := env.svc.Create(ctx, jdoe)
	assert.True(t, apperr.Is(err, apperr.KindCreation), "got %v", err)

	_, err = gw.FindByUsername(ctx, "jdoe")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "identity must be compensated")
	assert.Zero(t, env.countUsers(t))
	assert.Zero(t, env.countProfiles(t))
}

func TestUserService_Create_RoleFailureRollsBackEverything(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("") // client not configured
	env := newTestEnv(t, gw)

	_, err := env.svc.Create(ctx, jdoe)
	assert.True(t, apperr.Is(err, apperr.KindCreation), "got %v", err)

	all, err := gw.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Zero(t, env.countUsers(t))
	assert.Zero(t, env.countProfiles(t))
}

func TestUserService_Create_FailedCompensationIsCritical(t *testing.T) {
	gw := new(MockGateway)
	env := newTestEnv(t, gw)

	gw.On("Create", mock.Anything, mock.Anything).Return("id-1", nil)
	gw.On("SetPassword", mock.Anything, "id-1", "secret123").Return(errors.New("password policy service down"))
	gw.On("Delete", mock.Anything, "id-1").Return(errors.New("identity provider unreachable"))

	_, err := env.svc.Create(context.Background(), jdoe)
	require.True(t, apperr.Is(err, apperr.KindCriticalInconsistency), "got %v", err)
	assert.Zero(t, env.countUsers(t))
	gw.AssertExpectations(t)
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	user, err := env.svc.Create(ctx, jdoe)
	require.NoError(t, err)

	req := jdoe
	req.Email = "john@x.com"
	req.FirstName = "John"
	updated, err := env.svc.Update(ctx, user.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "john@x.com", updated.Email)

	stored, err := env.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "John", stored.FirstName)
	assert.Equal(t, []string{"default_role"}, stored.RoleNames())

	record, err := gw.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "john@x.com", record.Email)
	assert.Contains(t, env.eventNames(), events.NameUserUpdated)
}

func TestUserService_Update_BlankFieldsKeepLocalValues(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	env.seedLocalUser(t, "id-1", "jdoe")

	gw.On("FindByID", mock.Anything, "id-1").Return(&identity.Record{ID: "id-1", Username: "jdoe", Email: "jdoe@x.com"}, nil)
	gw.On("Update", mock.Anything, "id-1", mock.Anything).Return(nil)

	req := jdoe
	req.FirstName = "   "
	_, err := env.svc.Update(ctx, "id-1", req)
	require.NoError(t, err)

	stored, err := env.users.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "First", stored.FirstName)
}

func TestUserService_Update_UnknownUserIsNotFound(t *testing.T) {
	gw := new(MockGateway)
	env := newTestEnv(t, gw)

	_, err := env.svc.Update(context.Background(), "missing", jdoe)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	gw.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_Update_ProviderFailureLeavesLocalUntouched(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	env.seedLocalUser(t, "id-1", "jdoe")

	gw.On("FindByID", mock.Anything, "id-1").Return(&identity.Record{ID: "id-1", Username: "jdoe", Email: "jdoe@x.com"}, nil)
	gw.On("Update", mock.Anything, "id-1", mock.Anything).Return(errors.New("timeout"))

	req := jdoe
	req.Email = "john@x.com"
	_, err := env.svc.Update(ctx, "id-1", req)
	assert.True(t, apperr.Is(err, apperr.KindUpdate), "got %v", err)

	stored, err := env.users.GetByID(ctx, "id-1")
	require.NoError(t, err)
	assert.Equal(t, "jdoe@x.com", stored.Email)
	gw.AssertNumberOfCalls(t, "Update", 1)
}

func TestUserService_Update_PreImageReadFailure(t *testing.T) {
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	env.seedLocalUser(t, "id-1", "jdoe")
	gw.On("FindByID", mock.Anything, "id-1").Return(nil, errors.New("timeout"))

	_, err := env.svc.Update(context.Background(), "id-1", jdoe)
	assert.True(t, apperr.Is(err, apperr.KindUpdate))
	gw.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserService_Update_LocalFailureRestoresProvider(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	user, err := env.svc.Create(ctx, jdoe)
	require.NoError(t, err)
	env.users.failUpdate = errStore

	req := jdoe
	req.Email = "john@x.com"
	_, err = env.svc.Update(ctx, user.ID, req)
	assert.True(t, apperr.Is(err, apperr.KindUpdate), "got %v", err)

	record, err := gw.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe@x.com", record.Email, "provider must be restored to its pre-image")
}

func TestUserService_Update_LocalFailureRestoresBlankFields(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	user, err := env.svc.Create(ctx, jdoe)
	require.NoError(t, err)
	before, err := gw.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, before.FirstName)
	require.Empty(t, before.LastName)
	env.users.failUpdate = errStore

	req := jdoe
	req.FirstName = "John"
	req.LastName = "Doe"
	_, err = env.svc.Update(ctx, user.ID, req)
	assert.True(t, apperr.Is(err, apperr.KindUpdate), "got %v", err)

	record, err := gw.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, record.FirstName)
	assert.Empty(t, record.LastName)
	assert.Equal(t, before.Email, record.Email)
}

func TestUserService_Update_FailedRestoreIsCritical(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	env.seedLocalUser(t, "id-1", "jdoe")
	env.users.failUpdate = errStore

	before := &identity.Record{ID: "id-1", Username: "jdoe", Email: "jdoe@x.com", Enabled: true}
	gw.On("FindByID", mock.Anything, "id-1").Return(before, nil)
	gw.On("Update", mock.Anything, "id-1", mock.MatchedBy(func(f identity.UserFields) bool {
		return f.Email == "john@x.com"
	})).Return(nil)
	gw.On("Update", mock.Anything, "id-1", before.Fields()).Return(errors.New("identity provider unreachable"))

	req := jdoe
	req.Email = "john@x.com"
	_, err := env.svc.Update(ctx, "id-1", req)
	assert.True(t, apperr.Is(err, apperr.KindCriticalInconsistency), "got %v", err)
	gw.AssertExpectations(t)
}

func TestUserService_Delete(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	user, err := env.svc.Create(ctx, jdoe)
	require.NoError(t, err)
	require.NoError(t, env.playlists.Create(ctx, &models.Playlist{UserID: user.ID, Name: "Mix"}))

	require.NoError(t, env.svc.Delete(ctx, user.ID))

	_, err = env.users.GetByID(ctx, user.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Zero(t, env.countProfiles(t))
	owned, err := env.playlists.GetByOwner(ctx, user.ID)
	require.NoError(t, err)
	assert.Empty(t, owned)
	_, err = gw.FindByID(ctx, user.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Contains(t, env.eventNames(), events.NameUserDeleted)

	err = env.svc.Delete(ctx, user.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUserService_Delete_ProviderFailureKeepsLocalRow(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	env.seedLocalUser(t, "id-1", "jdoe")
	gw.On("Delete", mock.Anything, "id-1").Return(errors.New("identity provider unreachable"))

	err := env.svc.Delete(ctx, "id-1")
	assert.True(t, apperr.Is(err, apperr.KindDeletion), "got %v", err)

	_, err = env.users.GetByID(ctx, "id-1")
	assert.NoError(t, err)
}

func TestUserService_Delete_LocalFailureIsCritical(t *testing.T) {
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	user, err := env.svc.Create(context.Background(), jdoe)
	require.NoError(t, err)
	env.users.failDelete = errStore

	err = env.svc.Delete(context.Background(), user.ID)
	assert.True(t, apperr.Is(err, apperr.KindCriticalInconsistency), "got %v", err)
}

func TestUserService_DeleteAfterProfileDeletion(t *testing.T) {
	ctx := context.Background()
	gw := identity.NewMemory("default_role")
	env := newTestEnv(t, gw)
	user, err := env.svc.Create(ctx, jdoe)
	require.NoError(t, err)

	// The profile-deleted listener removes the identity.
	require.NoError(t, env.profSvc.Delete(ctx, user.ID))
	_, err = gw.FindByID(ctx, user.ID)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	// The provider no longer knows the user; delete still completes.
	require.NoError(t, env.svc.Delete(ctx, user.ID))
	_, err = env.users.GetByID(ctx, user.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUserService_ProfileListenerFailureIsNotPropagated(t *testing.T) {
	ctx := context.Background()
	gw := new(MockGateway)
	env := newTestEnv(t, gw)
	env.seedLocalUser(t, "id-1", "jdoe")
	gw.On("Delete", mock.Anything, "id-1").Return(errors.New("identity provider unreachable")).Once()

	require.NoError(t, env.profSvc.Delete(ctx, "id-1"))
	assert.Zero(t, env.countProfiles(t))
	assert.Equal(t, []string{events.NameProfileDeleted}, env.eventNames())
	gw.AssertExpectations(t)
}
