// Package cli renders the application's views as terminal output and
// maps commands onto the session manager and the API clients. It holds
// no session logic of its own: the guard decides what may render, the
// session manager owns every credential transition.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/linkboard/linkboard/internal/apiclient"
	"github.com/linkboard/linkboard/internal/credstore"
	"github.com/linkboard/linkboard/internal/fakeshortener"
	"github.com/linkboard/linkboard/internal/guard"
	"github.com/linkboard/linkboard/internal/linkpruner"
	"github.com/linkboard/linkboard/internal/logger"
	"github.com/linkboard/linkboard/internal/models"
	"github.com/linkboard/linkboard/internal/session"
)

// ErrUnknownCommand signals an unrecognized command name.
var ErrUnknownCommand = errors.New("unknown command")

// Deps are the collaborators the CLI renders against.
type Deps struct {
	Session  *session.Manager
	API      *apiclient.Client
	Guard    *guard.Guard
	Store    *credstore.Store
	Pruner   *linkpruner.Pruner
	DemoAddr string

	// In and Out default to stdin/stdout.
	In  io.Reader
	Out io.Writer
}

// CLI dispatches commands and renders their output.
type CLI struct {
	deps  Deps
	in    *bufio.Reader
	out   io.Writer
	stdin io.Reader
}

// New builds a CLI from its collaborators.
func New(deps Deps) *CLI {
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}

	return &CLI{
		deps:  deps,
		in:    bufio.NewReader(deps.In),
		out:   deps.Out,
		stdin: deps.In,
	}
}

// Run executes one command. args is the command name followed by its
// parameters.
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.printLanding()
		return nil
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "login":
		return c.commandLogin(ctx, rest)
	case "register":
		return c.commandRegister(ctx, rest)
	case "logout":
		return c.commandLogout()
	case "whoami":
		return c.commandWhoami()
	case "links":
		return c.commandLinks(ctx, rest)
	case "analytics":
		return c.deps.Guard.Protect(func(ctx context.Context) error {
			return c.commandAnalytics(ctx, rest)
		})(ctx)
	case "demo":
		return c.commandDemo(ctx)
	case "help", "-h", "--help":
		c.printLanding()
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// printLanding is the entry view shown to everyone, signed in or not.
func (c *CLI) printLanding() {
	fmt.Fprintln(c.out, "linkboard - terminal client for your shortened links")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Usage: linkboard [flags] <command> [arguments]")
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, "Commands:")
	fmt.Fprintln(c.out, "  register                   create an account (signs you in)")
	fmt.Fprintln(c.out, "  login                      sign in")
	fmt.Fprintln(c.out, "  logout                     sign out and forget the stored credential")
	fmt.Fprintln(c.out, "  whoami                     show the signed-in user")
	fmt.Fprintln(c.out, "  links list                 dashboard: your links and their stats")
	fmt.Fprintln(c.out, "  links create               shorten a URL")
	fmt.Fprintln(c.out, "  links update <id>          change a link")
	fmt.Fprintln(c.out, "  links delete <id>          remove a link")
	fmt.Fprintln(c.out, "  links prune                remove archived and expired links")
	fmt.Fprintln(c.out, "  analytics <id>             click analytics for a link")
	fmt.Fprintln(c.out, "  demo                       run a local demo API server")

	state := c.deps.Session.State()
	if state.Authenticated() {
		fmt.Fprintf(c.out, "\nSigned in as %s\n", state.User.Email)
	} else {
		fmt.Fprintln(c.out, "\nNot signed in. Start with `linkboard register` or `linkboard login`.")
	}
}

// promptSecret reads a password without echo when stdin is a terminal,
// falling back to a plain line read otherwise (pipes, tests).
func (c *CLI) promptSecret(label string) (string, error) {
	fmt.Fprint(c.out, label)

	if file, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		secret, err := term.ReadPassword(int(file.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(secret), nil
	}

	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}

	return strings.TrimRight(line, "\r\n"), nil
}

func (c *CLI) commandLogin(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(c.out)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (supply to avoid the prompt)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *password == "" {
		secret, err := c.promptSecret("Password: ")
		if err != nil {
			return err
		}
		*password = secret
	}

	request := models.LoginRequest{Email: *email, Password: *password}
	if err := models.Validate(request); err != nil {
		return err
	}

	if err := c.deps.Session.Login(ctx, request.Email, request.Password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	fmt.Fprintf(c.out, "Successfully logged in as %s\n", request.Email)

	return nil
}

func (c *CLI) commandRegister(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.SetOutput(c.out)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password (supply to avoid the prompts)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	confirm := *password
	if *password == "" {
		secret, err := c.promptSecret("Password: ")
		if err != nil {
			return err
		}
		*password = secret

		confirm, err = c.promptSecret("Re-enter password: ")
		if err != nil {
			return err
		}
	}

	request := models.RegisterRequest{
		Email:           *email,
		Password:        *password,
		ConfirmPassword: confirm,
	}
	if err := models.Validate(request); err != nil {
		return err
	}

	if err := c.deps.Session.Register(ctx, request.Email, request.Password); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}

	fmt.Fprintf(c.out, "Account created successfully. You are signed in as %s\n", request.Email)

	return nil
}

func (c *CLI) commandLogout() error {
	c.deps.Session.Logout()
	fmt.Fprintln(c.out, "Logged out")

	return nil
}

func (c *CLI) commandWhoami() error {
	state := c.deps.Session.State()
	if !state.Authenticated() {
		fmt.Fprintln(c.out, "Not signed in")
		return nil
	}

	fmt.Fprintf(c.out, "Email: %s\n", state.User.Email)
	if state.User.Plan != "" {
		fmt.Fprintf(c.out, "Plan:  %s\n", state.User.Plan)
	}
	fmt.Fprintf(c.out, "Credentials: %s\n", c.deps.Store.FileName())

	return nil
}

// commandDemo serves the built-in fake shortener API so the client can
// be tried without a real backend.
func (c *CLI) commandDemo(ctx context.Context) error {
	fake := fakeshortener.New()
	server := &http.Server{
		Addr:    c.deps.DemoAddr,
		Handler: logger.WithRequestLogging(fake.Handler()),
	}

	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	fmt.Fprintf(c.out, "Demo shortener API listening on http://%s/api\n", c.deps.DemoAddr)
	fmt.Fprintln(c.out, "Point the client at it with: linkboard -a http://"+c.deps.DemoAddr+"/api <command>")

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}
