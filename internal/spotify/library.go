package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/desertthunder/vibeflow/internal/shared"
)

// Time ranges accepted by the top items endpoints.
const (
	ShortTerm  = "short_term"
	MediumTerm = "medium_term"
	LongTerm   = "long_term"
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return min(limit, 50)
}

// UserProfile retrieves the current authenticated user's profile.
func (c *Client) UserProfile(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, endpoint: "/me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TopArtists returns the user's most listened artists over timeRange.
func (c *Client) TopArtists(ctx context.Context, limit int, timeRange string) ([]Artist, error) {
	var page Page[Artist]
	if err := c.top(ctx, "artists", limit, timeRange, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// TopTracks returns the user's most listened tracks over timeRange.
func (c *Client) TopTracks(ctx context.Context, limit int, timeRange string) ([]Track, error) {
	var page Page[Track]
	if err := c.top(ctx, "tracks", limit, timeRange, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (c *Client) top(ctx context.Context, kind string, limit int, timeRange string, result any) error {
	if timeRange == "" {
		timeRange = MediumTerm
	}
	q := url.Values{
		"limit":      {strconv.Itoa(clampLimit(limit))},
		"time_range": {timeRange},
	}
	_, err := c.doRequest(ctx, request{method: http.MethodGet, endpoint: "/me/top/" + kind, query: q}, result)
	return err
}

// RecentlyPlayed returns the user's most recently played tracks, newest first.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]PlayHistory, error) {
	var page Page[PlayHistory]
	q := url.Values{"limit": {strconv.Itoa(clampLimit(limit))}}
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, endpoint: "/me/player/recently-played", query: q}, &page); err != nil {
		return nil, err
	}
	return page.Items, nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (c *Client) UserPlaylists(ctx context.Context, limit, offset int) (*Page[Playlist], error) {
	q := url.Values{
		"limit":  {strconv.Itoa(clampLimit(limit))},
		"offset": {strconv.Itoa(offset)},
	}

	var page Page[Playlist]
	if _, err := c.doRequest(ctx, request{method: http.MethodGet, endpoint: "/me/playlists", query: q}, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// AllPlaylists walks every page of the user's playlists.
func (c *Client) AllPlaylists(ctx context.Context) ([]Playlist, error) {
	var all []Playlist
	limit, offset := 50, 0

	for {
		page, err := c.UserPlaylists(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += limit
	}

	return all, nil
}

// Artist retrieves the full artist object.
func (c *Client) Artist(ctx context.Context, artistID string) (*Artist, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}

	var artist Artist
	_, err := c.doRequest(ctx, request{method: http.MethodGet, endpoint: "/artists/" + url.PathEscape(artistID)}, &artist)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", artistID, shared.ErrArtistNotFound)
		}
		return nil, err
	}
	return &artist, nil
}

// ArtistTopTracks returns the artist's most popular tracks in the client's market.
func (c *Client) ArtistTopTracks(ctx context.Context, artistID string) ([]Track, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist id", shared.ErrMissingArgument)
	}

	var resp struct {
		Tracks []Track `json:"tracks"`
	}
	q := url.Values{"market": {c.market}}
	r := request{method: http.MethodGet, endpoint: "/artists/" + url.PathEscape(artistID) + "/top-tracks", query: q}
	if _, err := c.doRequest(ctx, r, &resp); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", artistID, shared.ErrArtistNotFound)
		}
		return nil, err
	}
	return resp.Tracks, nil
}

// IsNotFound reports whether err is a 404 from the Web API.
func IsNotFound(err error) bool {
	var apiErr *shared.APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
