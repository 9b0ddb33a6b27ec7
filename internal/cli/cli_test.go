package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linkboard/linkboard/internal/apiclient"
	"github.com/linkboard/linkboard/internal/credstore"
	"github.com/linkboard/linkboard/internal/fakeshortener"
	"github.com/linkboard/linkboard/internal/guard"
	"github.com/linkboard/linkboard/internal/linkpruner"
	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/session"
)

type fixture struct {
	cli    *CLI
	out    *bytes.Buffer
	store  *credstore.Store
	client *apiclient.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	fake := fakeshortener.New()
	testServer := httptest.NewServer(fake.Handler())
	t.Cleanup(testServer.Close)

	theStore := credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
	theClient := apiclient.New(testServer.URL+"/api", theStore)
	theSession := session.New(theStore, theClient)
	theSession.Hydrate()

	out := &bytes.Buffer{}
	theCLI := New(Deps{
		Session: theSession,
		API:     theClient,
		Guard:   guard.New(theSession),
		Store:   theStore,
		Pruner:  linkpruner.New(theClient, 2),
		In:      strings.NewReader(""),
		Out:     out,
	})

	return &fixture{cli: theCLI, out: out, store: theStore, client: theClient}
}

func (f *fixture) run(t *testing.T, args ...string) error {
	t.Helper()
	return f.cli.Run(context.Background(), args)
}

func (f *fixture) mustRun(t *testing.T, args ...string) {
	t.Helper()
	require.NoError(t, f.run(t, args...))
}

func TestLandingView(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t)

	assert.Contains(t, f.out.String(), "Usage: linkboard")
	assert.Contains(t, f.out.String(), "Not signed in")
}

func TestProtectedCommandsRedirectAnonymousUsers(t *testing.T) {
	f := newFixture(t)

	for _, args := range [][]string{
		{"links", "list"},
		{"links", "create", "-url", "https://example.com"},
		{"links", "prune"},
		{"analytics", "some-id"},
	} {
		err := f.run(t, args...)
		assert.ErrorIs(t, err, guard.ErrLoginRequired, "command %v should be gated", args)
	}
}

func TestRegisterThenDashboard(t *testing.T) {
	f := newFixture(t)

	f.mustRun(t, "register", "-email", "a@b.com", "-password", "password123")
	assert.Contains(t, f.out.String(), "signed in as a@b.com")

	f.out.Reset()
	f.mustRun(t, "links", "create", "-url", "https://example.com/landing", "-alias", "landing")
	assert.Contains(t, f.out.String(), "Link created successfully")

	f.out.Reset()
	f.mustRun(t, "links", "list")
	output := f.out.String()
	assert.Contains(t, output, "Total links: 1")
	assert.Contains(t, output, "Active links: 1")
	assert.Contains(t, output, "landing")
}

func TestValidationFailsBeforeAnyNetworkCall(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "malformed email",
			args: []string{"login", "-email", "not-an-email", "-password", "password123"},
			want: "Invalid email address",
		},
		{
			name: "short password on register",
			args: []string{"register", "-email", "a@b.com", "-password", "short"},
			want: "at least 8 characters",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := f.run(t, test.args...)
			var validationErr *models.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Contains(t, validationErr.Error(), test.want)
			assert.Nil(t, f.store.Load(), "no credential should appear without a network call")
		})
	}
}

func TestMalformedLinkInputIsRejectedInline(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "register", "-email", "a@b.com", "-password", "password123")

	err := f.run(t, "links", "create", "-url", "not a url")
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "valid URL")

	err = f.run(t, "links", "create", "-url", "https://example.com", "-alias", "no spaces!")
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "Alias")
}

func TestWhoamiAndLogout(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "register", "-email", "a@b.com", "-password", "password123")

	f.out.Reset()
	f.mustRun(t, "whoami")
	assert.Contains(t, f.out.String(), "Email: a@b.com")
	assert.Contains(t, f.out.String(), "credentials.json")

	f.out.Reset()
	f.mustRun(t, "logout")
	assert.Contains(t, f.out.String(), "Logged out")
	assert.Nil(t, f.store.Load())

	f.out.Reset()
	f.mustRun(t, "whoami")
	assert.Contains(t, f.out.String(), "Not signed in")
}

func TestPasswordPromptFallsBackToLineInput(t *testing.T) {
	fake := fakeshortener.New()
	testServer := httptest.NewServer(fake.Handler())
	t.Cleanup(testServer.Close)

	theStore := credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
	theClient := apiclient.New(testServer.URL+"/api", theStore)
	theSession := session.New(theStore, theClient)
	theSession.Hydrate()

	out := &bytes.Buffer{}
	theCLI := New(Deps{
		Session: theSession,
		API:     theClient,
		Guard:   guard.New(theSession),
		Store:   theStore,
		Pruner:  linkpruner.New(theClient, 2),
		In:      strings.NewReader("password123\npassword123\n"),
		Out:     out,
	})

	err := theCLI.Run(context.Background(), []string{"register", "-email", "a@b.com"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Re-enter password")
	assert.NotNil(t, theStore.Load())
}

func TestLinksPruneRemovesArchivedLinks(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "register", "-email", "a@b.com", "-password", "password123")

	f.mustRun(t, "links", "create", "-url", "https://example.com/keep")
	f.mustRun(t, "links", "create", "-url", "https://example.com/drop", "-inactive")

	f.out.Reset()
	f.mustRun(t, "links", "prune")
	assert.Contains(t, f.out.String(), "Pruned 1 links, 0 failures")

	links, err := f.client.ListLinks(context.Background())
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/keep", links[0].OriginalURL)
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.run(t, "frobnicate"), ErrUnknownCommand)
	assert.ErrorIs(t, f.run(t, "links", "frobnicate"), ErrUnknownCommand)
}
