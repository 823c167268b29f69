package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/vibeflow/internal/scrobble"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/urfave/cli/v3"
)

const lastfmPollInterval = 3 * time.Second

// LastFMAuth links a Last.fm account with the desktop token flow and saves the session key
// to the config file.
func (r *Runner) LastFMAuth(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	lastfm := config.Credentials.LastFM
	if lastfm.APIKey == "" || lastfm.APISecret == "" {
		return &shared.ConfigError{Field: "credentials.lastfm.api_key", Reason: "and api_secret must be set"}
	}

	client := scrobble.NewClient(shared.LastFMConfig{APIKey: lastfm.APIKey, APISecret: lastfm.APISecret})
	token, err := client.Token()
	if err != nil {
		return err
	}

	authURL := client.AuthURL(token)
	r.writePlain("→ Opening browser for Last.fm authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (%s timeout)...\n", authTimeout)

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	username, sessionKey, err := r.waitForLink(ctx, client, token)
	if err != nil {
		return err
	}

	config.Credentials.LastFM.Username = username
	config.Credentials.LastFM.SessionKey = sessionKey
	if err := r.saveConfig(); err != nil {
		return err
	}

	r.writePlainln("✓ Linked Last.fm account %s", username)
	r.writePlain("✓ Session key saved to %s\n", r.configPath)
	return nil
}

// waitForLink retries the session exchange until the user approves the token in the browser.
func (r *Runner) waitForLink(ctx context.Context, client *scrobble.Client, token string) (string, string, error) {
	ticker := time.NewTicker(lastfmPollInterval)
	defer ticker.Stop()

	for {
		username, sessionKey, err := client.Link(token)
		if err == nil {
			return username, sessionKey, nil
		}
		r.logger.Debug("last.fm token not approved yet", "error", err)

		select {
		case <-ctx.Done():
			return "", "", fmt.Errorf("%w: last.fm authorization: %v", shared.ErrTimeout, err)
		case <-ticker.C:
		}
	}
}
