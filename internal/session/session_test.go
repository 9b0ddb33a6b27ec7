package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkboard/linkboard/internal/credstore"
	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/user"
)

type stubAuthAPI struct {
	loginResponse    *models.AuthResponse
	loginErr         error
	registerResponse *models.AuthResponse
	registerErr      error

	// gate, when non-nil, blocks Login until released; it simulates an
	// in-flight network call.
	gate chan struct{}
}

func (s *stubAuthAPI) Login(ctx context.Context, request models.LoginRequest) (*models.AuthResponse, error) {
	if s.gate != nil {
		<-s.gate
	}
	return s.loginResponse, s.loginErr
}

func (s *stubAuthAPI) Register(ctx context.Context, request models.RegisterRequest) (*models.AuthResponse, error) {
	return s.registerResponse, s.registerErr
}

func newTestStore(t *testing.T) *credstore.Store {
	t.Helper()
	return credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
}

func TestHydrateFromPopulatedStore(t *testing.T) {
	theStore := newTestStore(t)
	require.NoError(t, theStore.Save(&credstore.Credential{
		Token: "t1",
		User:  &user.Profile{Email: "a@b.com"},
	}))

	manager := New(theStore, &stubAuthAPI{})
	assert.True(t, manager.State().Loading, "the manager should start hydrating")

	manager.Hydrate()

	state := manager.State()
	assert.False(t, state.Loading)
	require.NotNil(t, state.User)
	assert.Equal(t, "a@b.com", state.User.Email)
}

func TestHydrateFromEmptyStore(t *testing.T) {
	manager := New(newTestStore(t), &stubAuthAPI{})

	manager.Hydrate()

	state := manager.State()
	assert.False(t, state.Loading)
	assert.Nil(t, state.User)
	assert.False(t, state.Authenticated())
}

func TestLoginSuccessUpdatesStateAndStore(t *testing.T) {
	theStore := newTestStore(t)
	api := &stubAuthAPI{
		loginResponse: &models.AuthResponse{Token: "t1", Email: "a@b.com", Plan: "FREE"},
	}
	manager := New(theStore, api)
	manager.Hydrate()

	require.NoError(t, manager.Login(context.Background(), "a@b.com", "password123"))

	state := manager.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "a@b.com", state.User.Email)

	stored := theStore.Load()
	require.NotNil(t, stored, "the store should hold a matching credential")
	assert.Equal(t, "t1", stored.Token)
	assert.Equal(t, state.User.Email, stored.User.Email)
}

func TestLoginFailureLeavesEverythingUnchanged(t *testing.T) {
	theStore := newTestStore(t)
	api := &stubAuthAPI{loginErr: errors.New("api request failed (401): bad credentials")}
	manager := New(theStore, api)
	manager.Hydrate()

	err := manager.Login(context.Background(), "a@b.com", "wrong")
	assert.Error(t, err)

	state := manager.State()
	assert.Nil(t, state.User)
	assert.Nil(t, theStore.Load())
}

func TestRegisterAutoLogsIn(t *testing.T) {
	theStore := newTestStore(t)
	api := &stubAuthAPI{
		registerResponse: &models.AuthResponse{Token: "t2", Email: "new@b.com", Plan: "FREE"},
	}
	manager := New(theStore, api)
	manager.Hydrate()

	require.NoError(t, manager.Register(context.Background(), "new@b.com", "password123"))

	assert.True(t, manager.State().Authenticated())
	require.NotNil(t, theStore.Load())
	assert.Equal(t, "t2", theStore.Load().Token)
}

func TestLogoutClearsStateAndStore(t *testing.T) {
	theStore := newTestStore(t)
	api := &stubAuthAPI{
		loginResponse: &models.AuthResponse{Token: "t1", Email: "a@b.com"},
	}
	manager := New(theStore, api)
	manager.Hydrate()
	require.NoError(t, manager.Login(context.Background(), "a@b.com", "password123"))

	manager.Logout()

	state := manager.State()
	assert.Nil(t, state.User)
	assert.False(t, state.Loading)
	assert.Nil(t, theStore.Load())

	// Logging out while anonymous changes nothing.
	manager.Logout()
	assert.Nil(t, manager.State().User)
}

type failingStore struct {
	cleared bool
}

func (f *failingStore) Save(*credstore.Credential) error {
	return errors.New("disk full")
}

func (f *failingStore) Load() *credstore.Credential { return nil }

func (f *failingStore) Clear() { f.cleared = true }

func TestLoginWithBrokenStorageDegradesToAnonymous(t *testing.T) {
	theStore := &failingStore{}
	api := &stubAuthAPI{
		loginResponse: &models.AuthResponse{Token: "t1", Email: "a@b.com"},
	}
	manager := New(theStore, api)
	manager.Hydrate()

	err := manager.Login(context.Background(), "a@b.com", "password123")
	assert.Error(t, err)

	// Memory must not claim a session the store could not persist.
	assert.Nil(t, manager.State().User)
	assert.True(t, theStore.cleared)
}

func TestLoginResolvingAfterLogoutWinsWholesale(t *testing.T) {
	theStore := newTestStore(t)
	api := &stubAuthAPI{
		loginResponse: &models.AuthResponse{Token: "t-late", Email: "late@b.com"},
		gate:          make(chan struct{}),
	}
	manager := New(theStore, api)
	manager.Hydrate()

	loginDone := make(chan error, 1)
	go func() {
		loginDone <- manager.Login(context.Background(), "late@b.com", "password123")
	}()

	// A logout (for example the 401 interceptor side effect) lands
	// while the login call is still outstanding.
	manager.Logout()
	assert.Nil(t, manager.State().User)

	close(api.gate)
	require.NoError(t, <-loginDone)

	// The login's response arrived last, so its writer wins, and the
	// store and memory agree exactly.
	state := manager.State()
	require.NotNil(t, state.User)
	assert.Equal(t, "late@b.com", state.User.Email)

	stored := theStore.Load()
	require.NotNil(t, stored)
	assert.Equal(t, "t-late", stored.Token)
	assert.Equal(t, state.User.Email, stored.User.Email)
}
