package scrobble

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/shkh/lastfm-go/lastfm"
)

// ErrNotLinked is returned when an operation needs a Last.fm session key.
var ErrNotLinked = errors.New("last.fm account not linked")

const authURL = "https://www.last.fm/api/auth/"

// Track is the metadata Last.fm needs for one listen.
type Track struct {
	Artist    string
	Track     string
	Album     string
	Duration  time.Duration
	StartedAt time.Time
}

// Client wraps the Last.fm API.
type Client struct {
	api        *lastfm.Api
	apiKey     string
	sessionKey string
}

// NewClient creates a client from config. The session key may be empty until [Client.Link].
func NewClient(cfg shared.LastFMConfig) *Client {
	c := &Client{api: lastfm.New(cfg.APIKey, cfg.APISecret), apiKey: cfg.APIKey}
	if cfg.SessionKey != "" {
		c.SetSessionKey(cfg.SessionKey)
	}
	return c
}

func (c *Client) SetSessionKey(key string) {
	c.sessionKey = key
	c.api.SetSession(key)
}

func (c *Client) Linked() bool {
	return c.sessionKey != ""
}

// Token requests a desktop auth token.
func (c *Client) Token() (string, error) {
	token, err := c.api.GetToken()
	if err != nil {
		return "", fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// AuthURL is where the user approves token.
func (c *Client) AuthURL(token string) string {
	q := url.Values{"api_key": {c.apiKey}, "token": {token}}
	return authURL + "?" + q.Encode()
}

// Link exchanges an approved token for a session key and returns the account name.
func (c *Client) Link(token string) (username, sessionKey string, err error) {
	if err := c.api.LoginWithToken(token); err != nil {
		return "", "", fmt.Errorf("get session: %w", err)
	}
	c.sessionKey = c.api.GetSessionKey()

	info, err := c.api.User.GetInfo(nil)
	if err != nil {
		return "", c.sessionKey, nil
	}
	return info.Name, c.sessionKey, nil
}

func (c *Client) UpdateNowPlaying(t Track) error {
	if !c.Linked() {
		return ErrNotLinked
	}
	if _, err := c.api.Track.UpdateNowPlaying(params(t)); err != nil {
		return fmt.Errorf("update now playing: %w", err)
	}
	return nil
}

func (c *Client) Scrobble(t Track) error {
	if !c.Linked() {
		return ErrNotLinked
	}
	p := params(t)
	p["timestamp"] = t.StartedAt.Unix()
	if _, err := c.api.Track.Scrobble(p); err != nil {
		return fmt.Errorf("scrobble: %w", err)
	}
	return nil
}

func params(t Track) lastfm.P {
	p := lastfm.P{"artist": t.Artist, "track": t.Track}
	if t.Album != "" {
		p["album"] = t.Album
	}
	if t.Duration > 0 {
		p["duration"] = int(t.Duration.Seconds())
	}
	return p
}
