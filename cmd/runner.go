package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelfx/internal/library"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/recommend"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/session"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// ExportHistory records and lists completed exports.
type ExportHistory interface {
	tasks.ExportRecorder
	List(limit int) ([]*models.ExportRecord, error)
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	tokens      *repositories.TokenStore
	fallback    *repositories.FallbackStore
	history     ExportHistory
	google      *services.GoogleService
	catalog     *services.CatalogService
	session     *session.Controller
	library     *library.Service
	recommender *recommend.Recommender
	engine      tasks.Engine
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	// Storage backs the token store and local records; defaults to memory.
	Storage repositories.Storage
	History ExportHistory
	// Auth overrides the OAuth client built from Config.
	Auth       session.Authenticator
	BaseURL    string
	HTTPClient *http.Client
	Clock      session.Clock
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) (*Runner, error) {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Storage == nil {
		opts.Storage = repositories.NewMemoryStorage()
	}

	tokens := repositories.NewTokenStore(opts.Storage)
	fallback := repositories.NewFallbackStore(opts.Storage)

	transport, err := services.NewTransport(services.TransportOpts{
		BaseURL:           opts.BaseURL,
		Client:            opts.HTTPClient,
		Token:             tokens.Token,
		RequestsPerSecond: opts.Config.Library.RequestsPerSecond,
		Logger:            opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	public, err := services.NewTransport(services.TransportOpts{
		BaseURL:           opts.BaseURL,
		Client:            opts.HTTPClient,
		RequestsPerSecond: opts.Config.Library.RequestsPerSecond,
		Retry:             true,
		Logger:            opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	auth := opts.Auth
	if auth == nil {
		auth = newAuthenticator(opts.Config, tokens, opts.HTTPClient, opts.Output, opts.Logger)
	}

	google := services.NewGoogleService(transport, opts.Config.Library.PageSize)
	catalog := services.NewCatalogService(public, opts.Config.Credentials.Google.APIKey)
	controller := session.NewController(session.Opts{
		Auth:     auth,
		Remote:   google,
		Tokens:   tokens,
		Notifier: transport,
		Clock:    opts.Clock,
		Logger:   opts.Logger,
	})
	lib := library.New(library.Opts{
		Remote:   google,
		Identity: controller,
		Fallback: fallback,
		Logger:   opts.Logger,
	})

	var recorder tasks.ExportRecorder
	if opts.History != nil {
		recorder = opts.History
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		tokens:      tokens,
		fallback:    fallback,
		history:     opts.History,
		google:      google,
		catalog:     catalog,
		session:     controller,
		library:     lib,
		recommender: recommend.New(catalog, opts.Logger),
		engine:      tasks.NewLibraryEngine(google, lib, recorder),
	}, nil
}

// newAuthenticator builds the OAuth client, or one that reports the missing
// credentials when config.toml has none.
func newAuthenticator(cfg *shared.Config, tokens *repositories.TokenStore, client *http.Client, out io.Writer, logger *log.Logger) session.Authenticator {
	if err := cfg.Validate(); err != nil {
		return unconfigured{err}
	}
	g := cfg.Credentials.Google
	auth, err := services.NewAuthClient(services.AuthOpts{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  cfg.RedirectURL(),
		CallbackAddr: cfg.CallbackAddr(),
		Grants:       tokens,
		HTTPClient:   client,
		Out:          out,
		OpenBrowser:  shared.OpenBrowser,
		Logger:       logger,
	})
	if err != nil {
		return unconfigured{err}
	}
	return auth
}

type unconfigured struct{ err error }

func (u unconfigured) LoginInteractive(context.Context) (services.TokenResult, error) {
	return services.TokenResult{}, u.err
}

func (u unconfigured) LoginSilent(context.Context) (services.TokenResult, error) {
	return services.TokenResult{}, u.err
}

// SetLogger replaces the logger used by the runner's own output.
func (r *Runner) SetLogger(l *log.Logger) { r.logger = l }

// Close stops the session's refresh timer.
func (r *Runner) Close() { r.session.Close() }

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, shelvesCommand, favoriteCommand, booksCommand, recommendCommand, exportCommand, localCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// requireSession restores the stored session and fails unless it is signed in.
func (r *Runner) requireSession(ctx context.Context) error {
	if err := r.session.Restore(ctx); err != nil {
		r.logger.Debug("restore failed", "error", err)
		if errors.Is(err, shared.ErrMissingCredentials) {
			return err
		}
	}
	if !r.session.Snapshot().IsAuthenticated {
		return fmt.Errorf("%w: run 'shelfx auth login' first", shared.ErrNotAuthenticated)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
