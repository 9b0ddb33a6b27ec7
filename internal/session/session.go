// Package session owns the authoritative in-memory answer to "who is
// logged in". It reconciles that answer with the on-disk credential
// store: the two are only ever written together, under one mutex, so no
// observable instant has memory and storage disagreeing (outside the
// initial hydration window).
package session

import (
	"context"
	"sync"

	"github.com/linkboard/linkboard/internal/credstore"
	"github.com/linkboard/linkboard/internal/logger"
	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/user"
)

// authAPI is the slice of the API client the manager needs.
type authAPI interface {
	Login(ctx context.Context, request models.LoginRequest) (*models.AuthResponse, error)
	Register(ctx context.Context, request models.RegisterRequest) (*models.AuthResponse, error)
}

// credentialStore is the persistence contract the manager writes
// through. Load never fails (absence covers corruption), Clear never
// fails observably.
type credentialStore interface {
	Save(credential *credstore.Credential) error
	Load() *credstore.Credential
	Clear()
}

// State is a snapshot of the session. Loading is true only during the
// window between construction and the first Hydrate.
type State struct {
	// User is the authenticated profile, or nil when anonymous.
	User *user.Profile

	// Loading reports that hydration has not completed yet.
	Loading bool
}

// Authenticated reports whether the snapshot carries a logged-in user.
func (s State) Authenticated() bool {
	return s.User != nil
}

// Manager is the session state machine. Construct one at startup, pass
// it by handle to every consumer, Hydrate it once, and let it own every
// transition thereafter.
type Manager struct {
	mu    sync.Mutex
	api   authAPI
	store credentialStore
	state State
}

// New returns a Manager in the hydrating state.
func New(store credentialStore, api authAPI) *Manager {
	return &Manager{
		api:   api,
		store: store,
		state: State{Loading: true},
	}
}

// State returns a copy of the current session state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Hydrate reconstructs the session from the credential store. A failure
// to read storage is indistinguishable from an empty store; either way
// hydration completes and Loading drops to false exactly once.
func (m *Manager) Hydrate() {
	credential := m.store.Load()

	m.mu.Lock()
	defer m.mu.Unlock()

	if credential != nil {
		m.state.User = credential.User
	} else {
		m.state.User = nil
	}
	m.state.Loading = false
}

// apply installs an authentication response as the current session:
// storage first, then memory, inside one critical section. When the
// storage write fails both sides collapse to anonymous so they cannot
// drift apart.
func (m *Manager) apply(response *models.AuthResponse) error {
	profile := &user.Profile{Email: response.Email, Plan: response.Plan}
	credential := &credstore.Credential{Token: response.Token, User: profile}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Save(credential); err != nil {
		m.store.Clear()
		m.state.User = nil
		m.state.Loading = false
		return err
	}

	m.state.User = profile
	m.state.Loading = false

	return nil
}

// Login authenticates against the API. On success the credential is
// persisted and the session becomes authenticated; on failure nothing
// changes and the error is surfaced for display. There is no automatic
// retry. The response is applied whenever it arrives, even if a logout
// happened while the call was in flight: last writer wins, with storage
// and memory written together.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	response, err := m.api.Login(ctx, models.LoginRequest{Email: email, Password: password})
	if err != nil {
		logger.Log.Debugln("login failed:", err)
		return err
	}

	return m.apply(response)
}

// Register creates an account and, mirroring the server's auto-login
// semantics, immediately establishes the authenticated session.
func (m *Manager) Register(ctx context.Context, email, password string) error {
	response, err := m.api.Register(ctx, models.RegisterRequest{Email: email, Password: password})
	if err != nil {
		logger.Log.Debugln("registration failed:", err)
		return err
	}

	return m.apply(response)
}

// Logout clears the credential store and the in-memory user as one
// logical operation. It is unconditional and cannot leave a stale
// credential behind; calling it on an anonymous session is a no-op.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Clear()
	m.state.User = nil
	m.state.Loading = false
}
