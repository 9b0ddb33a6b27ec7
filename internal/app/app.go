// Package app assembles the client: configuration, logging, the
// credential store, the HTTP adapter, the session manager, the route
// guard and the command-line views, wired together once at startup and
// torn down at process exit.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/linkboard/linkboard/internal/apiclient"
	"github.com/linkboard/linkboard/internal/cli"
	"github.com/linkboard/linkboard/internal/config"
	"github.com/linkboard/linkboard/internal/credstore"
	"github.com/linkboard/linkboard/internal/guard"
	"github.com/linkboard/linkboard/internal/linkpruner"
	"github.com/linkboard/linkboard/internal/logger"
	"github.com/linkboard/linkboard/internal/session"
)

// pruneWorkers bounds concurrent DELETE calls during `links prune`.
const pruneWorkers = 4

// App is the composed client application.
type App struct {
	cfg     *config.Config
	session *session.Manager
	cli     *cli.CLI
}

// Option customises the app, mainly for tests.
type Option func(*options)

type options struct {
	in  io.Reader
	out io.Writer
}

// WithStreams overrides stdin/stdout.
func WithStreams(in io.Reader, out io.Writer) Option {
	return func(o *options) {
		o.in = in
		o.out = out
	}
}

// New wires the application together from an already-loaded config.
// The logger must be initialized by the caller.
func New(cfg *config.Config, opts ...Option) *App {
	o := &options{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	store := credstore.New(cfg.CredentialsFile)

	// The adapter reports authorization failures through a callback
	// instead of navigating anywhere itself; the app composes that
	// event with the session and the user-facing notice. manager is
	// captured by reference because the adapter is built first.
	var manager *session.Manager
	client := apiclient.New(cfg.APIBaseURL, store, apiclient.WithUnauthorizedCallback(func() {
		if manager != nil {
			manager.Logout()
		}
		fmt.Fprintln(o.out, "Your session has expired. Please log in again.")
	}))
	manager = session.New(store, client)

	theCLI := cli.New(cli.Deps{
		Session:  manager,
		API:      client,
		Guard:    guard.New(manager),
		Store:    store,
		Pruner:   linkpruner.New(client, pruneWorkers),
		DemoAddr: cfg.DemoAddr,
		In:       o.in,
		Out:      o.out,
	})

	return &App{cfg: cfg, session: manager, cli: theCLI}
}

// Run hydrates the session from the credential store and executes the
// configured command. Commands that call the API run under the
// configured request timeout; the demo server runs until ctx is done.
func (a *App) Run(ctx context.Context) error {
	a.session.Hydrate()

	commandCtx := ctx
	if len(a.cfg.Args) == 0 || a.cfg.Args[0] != "demo" {
		var cancel context.CancelFunc
		commandCtx, cancel = context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()
	}

	if err := a.cli.Run(commandCtx, a.cfg.Args); err != nil {
		logger.Log.Debugln("command failed:", err)
		return err
	}

	return nil
}
