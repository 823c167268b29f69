package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/insights"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/repositories"
	"github.com/desertthunder/vibeflow/internal/scrobble"
	"github.com/desertthunder/vibeflow/internal/session"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	baseURL    string
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	// BaseURL overrides the Web API root.
	BaseURL string
	Logger  *log.Logger
	Output  io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		baseURL:    opts.BaseURL,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

// SetLogger replaces the logger, e.g. with a file logger while the TUI owns the terminal.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playerCommand, nowCommand, ctlCommand,
		profileCommand, playlistsCommand, historyCommand, serveCommand, lastfmCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the --config file once. A missing file yields the defaults.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.config != nil {
		return r.config, nil
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	if r.configPath == "" {
		r.configPath = defaultConfigPath
	}

	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		r.config = shared.DefaultConfig()
		return r.config, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(config.Log.Level))
	r.config = config
	return config, nil
}

// saveConfig writes the in-memory config back to --config.
func (r *Runner) saveConfig() error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}
	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// stack is the object graph shared by every Spotify-facing command.
type stack struct {
	config   *shared.Config
	db       *sql.DB
	oauth    *oauth2.Config
	creds    *repositories.CredentialRepository
	plays    *repositories.PlayRepository
	sessions *session.Manager
	client   *spotify.Client
	player   *playback.Reconciler
	insights *insights.Service
}

// open builds the stack and restores the saved session. With requireAuth a missing session
// is an error that tells the user how to sign in.
func (r *Runner) open(ctx context.Context, cmd *cli.Command, requireAuth bool) (*stack, error) {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateSpotify(); err != nil {
		return nil, err
	}

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return nil, err
	}

	pb := config.Playback
	oauthConfig := spotify.NewOAuthConfig(config.Credentials.Spotify)
	creds := repositories.NewCredentialRepository(db)
	sessions := session.NewManager(session.ManagerOpts{
		Refresher:      session.NewOAuthRefresher(oauthConfig, r.httpClient),
		Store:          creds,
		Logger:         r.logger,
		RefreshTimeout: pb.RefreshTimeout.Duration,
	})

	cred, err := creds.Load(ctx)
	switch {
	case err == nil:
		if err := sessions.Restore(*cred); err != nil {
			r.logger.Warn("saved credential is unusable", "error", err)
		}
	case errors.Is(err, shared.ErrNotAuthenticated):
	default:
		db.Close()
		return nil, err
	}

	if requireAuth && !sessions.Authenticated() {
		db.Close()
		return nil, fmt.Errorf("%w: run `vibeflow auth login` first", shared.ErrNotAuthenticated)
	}

	client := spotify.NewClient(sessions, spotify.ClientOpts{
		BaseURL:    r.baseURL,
		HTTPClient: r.httpClient,
		Timeout:    pb.RequestTimeout.Duration,
		RateLimit:  pb.RateLimit,
		RateBurst:  pb.RateBurst,
		MaxRetries: pb.MaxRetries,
		Market:     config.Credentials.Spotify.Market,
		Logger:     r.logger,
	})

	return &stack{
		config:   config,
		db:       db,
		oauth:    oauthConfig,
		creds:    creds,
		plays:    repositories.NewPlayRepository(db),
		sessions: sessions,
		client:   client,
		player: playback.New(client, playback.Options{
			PollInterval:     pb.PollInterval.Duration,
			TickInterval:     pb.TickInterval.Duration,
			SkipRefreshDelay: pb.SkipRefreshDelay.Duration,
			Logger:           r.logger,
		}),
		insights: insights.NewService(client, insights.ServiceOpts{Logger: r.logger}),
	}, nil
}

func (s *stack) Close() error {
	s.player.Stop()
	return s.db.Close()
}

// background records plays and, when Last.fm is linked, scrobbles them until ctx ends.
func (r *Runner) background(ctx context.Context, s *stack) {
	go repositories.NewRecorder(s.plays, r.logger).Run(ctx, s.player.Subscribe())

	lastfm := s.config.Credentials.LastFM
	if !lastfm.Enabled() {
		r.logger.Debug("last.fm not linked, scrobbling disabled")
		return
	}
	go scrobble.New(scrobble.NewClient(lastfm), s.plays, r.logger).Run(ctx, s.player.Subscribe())
	r.logger.Info("scrobbling to last.fm", "user", lastfm.Username)
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
