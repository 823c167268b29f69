package main

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/desertthunder/vibeflow/internal/repositories"
	"github.com/desertthunder/vibeflow/internal/server"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the authorization code flow against a one-shot local callback server and
// saves the resulting session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	st, err := r.open(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer st.Close()

	token, err := r.doOAuth(ctx, st.oauth, cmd.Duration("timeout"))
	if err != nil {
		return err
	}

	if err := st.sessions.InitializeToken(token); err != nil {
		return err
	}
	// The manager only logs persistence failures, so confirm the row is there.
	if _, err := st.creds.Load(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	user, err := st.client.UserProfile(ctx)
	if err != nil {
		r.logger.Warn("signed in but could not load profile", "error", err)
		return r.writePlainln("✓ Signed in to Spotify")
	}

	r.writePlainln("✓ Signed in to Spotify as %s", user.DisplayName)
	r.writePlain("You can now use: vibeflow player\n")
	return nil
}

// AuthLogout removes the saved session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewCredentialRepository(db).Clear(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports whether a session is saved and when its access token expires.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	st, err := r.open(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer st.Close()

	cred, ok := st.sessions.Credential()
	if !ok {
		return r.writePlain("Spotify: ✗ Not signed in\n")
	}

	r.writePlain("Spotify: ✓ Signed in\n")
	if cred.Expired(time.Now()) {
		r.writePlain("Access token: expired, refreshed on next use\n")
	} else {
		r.writePlain("Access token: expires %s\n", humanize.Time(cred.ExpiresAt))
	}

	if lastfm := st.config.Credentials.LastFM; lastfm.Enabled() {
		r.writePlain("Last.fm: ✓ Linked as %s\n", lastfm.Username)
	} else {
		r.writePlain("Last.fm: ✗ Not linked\n")
	}
	return nil
}

// doOAuth serves the redirect URI locally, opens the consent page and waits for the code.
func (r *Runner) doOAuth(ctx context.Context, config *oauth2.Config, timeout time.Duration) (*oauth2.Token, error) {
	redirect, err := url.Parse(config.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, &shared.ConfigError{Field: "credentials.spotify.redirect_uri", Reason: "is not a URL"}
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(config, state, path)
	router := server.NewRouter(r.logger)
	router.Handler(oauthHandler)

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", redirect.Host, err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.New(redirect.Host, router, r.logger).Serve(serveCtx, ln)
	}()

	authURL := spotify.AuthCodeURL(config, state)
	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-serverErrors:
		return nil, fmt.Errorf("server error: %w", err)
	case <-timer.C:
		return nil, fmt.Errorf("%w: authorization timed out after %s", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	cancel()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}
