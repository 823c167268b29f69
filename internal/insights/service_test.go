package insights

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLibrary struct {
	mu          sync.Mutex
	artistCalls int
	artistErr   error
	tracksErr   error
	recentErr   error
	tracks      []spotify.Track
}

func (f *fakeLibrary) UserProfile(context.Context) (*spotify.User, error) {
	return &spotify.User{ID: "u1", DisplayName: "Listener"}, nil
}

func (f *fakeLibrary) TopArtists(_ context.Context, limit int, _ string) ([]spotify.Artist, error) {
	artists := make([]spotify.Artist, limit)
	for i := range artists {
		artists[i] = spotify.Artist{Name: "artist"}
	}
	return artists, nil
}

func (f *fakeLibrary) TopTracks(context.Context, int, string) ([]spotify.Track, error) {
	return f.tracks, nil
}

func (f *fakeLibrary) RecentlyPlayed(_ context.Context, limit int) ([]spotify.PlayHistory, error) {
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	return make([]spotify.PlayHistory, limit), nil
}

func (f *fakeLibrary) Artist(_ context.Context, id string) (*spotify.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artistCalls++
	if f.artistErr != nil {
		return nil, f.artistErr
	}
	return &spotify.Artist{ID: id, Name: "Mitski", Popularity: 70}, nil
}

func (f *fakeLibrary) ArtistTopTracks(context.Context, string) ([]spotify.Track, error) {
	if f.tracksErr != nil {
		return nil, f.tracksErr
	}
	return []spotify.Track{{Name: "Nobody"}}, nil
}

func newTestService(lib Library, now func() time.Time) *Service {
	return NewService(lib, ServiceOpts{Logger: shared.NewLogger(io.Discard), Now: now})
}

func TestServiceArtistFacts(t *testing.T) {
	t.Run("builds and caches", func(t *testing.T) {
		now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		lib := &fakeLibrary{}
		s := newTestService(lib, func() time.Time { return now })

		facts, err := s.ArtistFacts(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Mitski has a massive following with a popularity score of 70/100",
			`Mitski's biggest hit is "Nobody"`,
		}, facts)

		_, err = s.ArtistFacts(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, 1, lib.artistCalls)

		now = now.Add(DefaultFactTTL + time.Second)
		_, err = s.ArtistFacts(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, 2, lib.artistCalls)
	})

	t.Run("lookup failure degrades", func(t *testing.T) {
		lib := &fakeLibrary{tracksErr: &shared.APIError{Status: http.StatusBadGateway}}
		s := newTestService(lib, nil)

		facts, err := s.ArtistFacts(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, []string{UnavailableFact}, facts)

		// failures are not cached
		lib.tracksErr = nil
		facts, err = s.ArtistFacts(context.Background(), "a1")
		require.NoError(t, err)
		assert.Len(t, facts, 2)
	})

	t.Run("reauth is surfaced", func(t *testing.T) {
		lib := &fakeLibrary{artistErr: shared.NewReauthError(http.StatusBadRequest, errors.New("invalid_grant"))}
		s := newTestService(lib, nil)

		facts, err := s.ArtistFacts(context.Background(), "a1")
		assert.Nil(t, facts)
		assert.True(t, shared.IsReauthRequired(err))
	})

	t.Run("no artist id", func(t *testing.T) {
		s := newTestService(&fakeLibrary{}, nil)
		facts, err := s.ArtistFacts(context.Background(), "")
		require.NoError(t, err)
		assert.Equal(t, []string{UnavailableFact}, facts)
	})
}

func TestServiceProfile(t *testing.T) {
	t.Run("aggregates", func(t *testing.T) {
		tracks := make([]spotify.Track, 50)
		for i := range tracks {
			tracks[i] = spotify.Track{DurationMS: 180_000}
		}
		s := newTestService(&fakeLibrary{tracks: tracks}, nil)

		p, err := s.Profile(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Listener", p.User.DisplayName)
		assert.Len(t, p.TopArtists, 5)
		assert.Len(t, p.TopTracks, 5)
		assert.Len(t, p.RecentlyPlayed, 10)
		require.NotNil(t, p.Stats)
		assert.Equal(t, 50, p.Stats.TopTracksCount)
		assert.Equal(t, 25, p.Stats.EstimatedHours)
		assert.Equal(t, 3, p.Stats.AvgTrackMinutes)
	})

	t.Run("no top tracks", func(t *testing.T) {
		s := newTestService(&fakeLibrary{}, nil)
		p, err := s.Profile(context.Background())
		require.NoError(t, err)
		assert.Nil(t, p.Stats)
		assert.Empty(t, p.TopTracks)
	})

	t.Run("any failure fails", func(t *testing.T) {
		boom := &shared.RemoteUnavailableError{Op: "recently played", Err: errors.New("boom")}
		s := newTestService(&fakeLibrary{recentErr: boom}, nil)
		_, err := s.Profile(context.Background())
		assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	})
}
