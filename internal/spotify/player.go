package spotify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/vibeflow/internal/shared"
)

// CurrentlyPlaying returns the user's current playback, or nil when nothing is playing (204).
func (c *Client) CurrentlyPlaying(ctx context.Context) (*CurrentlyPlaying, error) {
	var cp CurrentlyPlaying
	status, err := c.doRequest(ctx, request{method: http.MethodGet, endpoint: "/me/player/currently-playing"}, &cp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	return &cp, nil
}

// Play resumes playback on the active device. A non-empty contextURI starts that album,
// playlist or artist from the beginning instead.
func (c *Client) Play(ctx context.Context, contextURI string) error {
	r := request{method: http.MethodPut, endpoint: "/me/player/play"}
	if contextURI != "" {
		r.body = map[string]string{"context_uri": contextURI}
	}
	return c.command(ctx, r)
}

// Pause pauses playback on the active device.
func (c *Client) Pause(ctx context.Context) error {
	return c.command(ctx, request{method: http.MethodPut, endpoint: "/me/player/pause"})
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	return c.command(ctx, request{method: http.MethodPost, endpoint: "/me/player/next"})
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context) error {
	return c.command(ctx, request{method: http.MethodPost, endpoint: "/me/player/previous"})
}

// Seek moves playback to positionMS within the current track.
func (c *Client) Seek(ctx context.Context, positionMS int) error {
	if positionMS < 0 {
		return fmt.Errorf("%w: position %d", shared.ErrInvalidArgument, positionMS)
	}
	return c.command(ctx, request{
		method:   http.MethodPut,
		endpoint: "/me/player/seek",
		query:    url.Values{"position_ms": {strconv.Itoa(positionMS)}},
	})
}

// SetVolume sets the active device's volume. percent must be within 0..100.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume %d", shared.ErrInvalidArgument, percent)
	}
	return c.command(ctx, request{
		method:   http.MethodPut,
		endpoint: "/me/player/volume",
		query:    url.Values{"volume_percent": {strconv.Itoa(percent)}},
	})
}

// command sends a player control request. Spotify answers 204 when it accepted the command and
// 404 when the user has no active device.
func (c *Client) command(ctx context.Context, r request) error {
	_, err := c.doRequest(ctx, r, nil)
	if err != nil && statusOf(err) == http.StatusNotFound {
		return fmt.Errorf("%s: %w", r.op(), shared.ErrNoActiveDevice)
	}
	return err
}
