package insights

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultFactTTL = 5 * time.Minute

	profileArtistLimit  = 5
	profileTrackLimit   = 50
	profileTrackDisplay = 5
	profileRecentLimit  = 10
)

// Library is the part of the Spotify client the insights service reads from.
type Library interface {
	UserProfile(ctx context.Context) (*spotify.User, error)
	TopArtists(ctx context.Context, limit int, timeRange string) ([]spotify.Artist, error)
	TopTracks(ctx context.Context, limit int, timeRange string) ([]spotify.Track, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]spotify.PlayHistory, error)
	Artist(ctx context.Context, artistID string) (*spotify.Artist, error)
	ArtistTopTracks(ctx context.Context, artistID string) ([]spotify.Track, error)
}

// Profile is everything the profile page shows.
type Profile struct {
	User           *spotify.User         `json:"user"`
	TopArtists     []spotify.Artist      `json:"top_artists"`
	TopTracks      []spotify.Track       `json:"top_tracks"`
	Stats          *ListeningStats       `json:"stats,omitempty"`
	RecentlyPlayed []spotify.PlayHistory `json:"recently_played"`
}

type ServiceOpts struct {
	Logger    *log.Logger
	FactTTL   time.Duration
	Now       func() time.Time
	TimeRange string
}

// Service builds artist facts and profile summaries from the user's library.
type Service struct {
	library   Library
	logger    *log.Logger
	facts     *factCache
	timeRange string
}

func NewService(library Library, opts ServiceOpts) *Service {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.FactTTL <= 0 {
		opts.FactTTL = DefaultFactTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TimeRange == "" {
		opts.TimeRange = spotify.MediumTerm
	}
	return &Service{
		library:   library,
		logger:    opts.Logger.WithPrefix("insights"),
		facts:     newFactCache(opts.FactTTL, opts.Now),
		timeRange: opts.TimeRange,
	}
}

// ArtistFacts returns display facts for the artist.
//
// Lookup failures degrade to [UnavailableFact]. Only errors that require the user to log in again
// are returned.
func (s *Service) ArtistFacts(ctx context.Context, artistID string) ([]string, error) {
	if artistID == "" {
		return []string{UnavailableFact}, nil
	}
	if facts, ok := s.facts.Get(artistID); ok {
		return facts, nil
	}

	artist, err := s.library.Artist(ctx, artistID)
	if err != nil {
		return s.degrade(artistID, err)
	}

	tracks, err := s.library.ArtistTopTracks(ctx, artistID)
	if err != nil {
		return s.degrade(artistID, err)
	}

	facts := BuildArtistFacts(artist, tracks)
	s.facts.Set(artistID, facts)
	return facts, nil
}

func (s *Service) degrade(artistID string, err error) ([]string, error) {
	if shared.IsReauthRequired(err) {
		return nil, err
	}
	s.logger.Warn("artist lookup failed", "artist", artistID, "error", err)
	return []string{UnavailableFact}, nil
}

// Profile loads the user, their top artists and tracks and recent plays concurrently.
func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	var (
		p      Profile
		tracks []spotify.Track
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p.User, err = s.library.UserProfile(ctx)
		return err
	})
	g.Go(func() (err error) {
		p.TopArtists, err = s.library.TopArtists(ctx, profileArtistLimit, s.timeRange)
		return err
	})
	g.Go(func() (err error) {
		tracks, err = s.library.TopTracks(ctx, profileTrackLimit, s.timeRange)
		return err
	})
	g.Go(func() (err error) {
		p.RecentlyPlayed, err = s.library.RecentlyPlayed(ctx, profileRecentLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if stats, ok := ComputeListeningStats(tracks); ok {
		p.Stats = &stats
	}
	p.TopTracks = tracks[:min(profileTrackDisplay, len(tracks))]
	return &p, nil
}

// Forget drops cached facts.
func (s *Service) Forget() {
	s.facts.Clear()
}
