package repositories

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/session"
	"github.com/desertthunder/vibeflow/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	return db
}

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()
	expires := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Load empty", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		_, err := repo.Load(ctx)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("Save and Load", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))
		cred := session.Credential{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: expires}

		if err := repo.Save(ctx, cred); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load credential: %v", err)
		}
		if got.AccessToken != "access" || got.RefreshToken != "refresh" {
			t.Errorf("unexpected credential: %+v", got)
		}
		if !got.ExpiresAt.Equal(expires) {
			t.Errorf("expected expiry %v, got %v", expires, got.ExpiresAt)
		}
	})

	t.Run("Save replaces", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewCredentialRepository(db)

		if err := repo.Save(ctx, session.Credential{AccessToken: "a1", RefreshToken: "r1", ExpiresAt: expires}); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}
		if err := repo.Save(ctx, session.Credential{AccessToken: "a2", RefreshToken: "r2", ExpiresAt: expires.Add(time.Hour)}); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM credentials").Scan(&n); err != nil {
			t.Fatalf("failed to count credentials: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 credential row, got %d", n)
		}

		got, err := repo.Load(ctx)
		if err != nil {
			t.Fatalf("failed to load credential: %v", err)
		}
		if got.AccessToken != "a2" || got.RefreshToken != "r2" {
			t.Errorf("expected replaced credential, got %+v", got)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewCredentialRepository(setupTestDB(t))

		if err := repo.Clear(ctx); err != nil {
			t.Fatalf("clearing an empty store should succeed: %v", err)
		}
		if err := repo.Save(ctx, session.Credential{AccessToken: "a", RefreshToken: "r", ExpiresAt: expires}); err != nil {
			t.Fatalf("failed to save credential: %v", err)
		}
		if err := repo.Clear(ctx); err != nil {
			t.Fatalf("failed to clear credential: %v", err)
		}
		if _, err := repo.Load(ctx); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected credential to be gone, got %v", err)
		}
	})
}

func TestPlayRepository(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	seed := func(t *testing.T, repo *PlayRepository, n int) []*Play {
		t.Helper()
		var plays []*Play
		for i := range n {
			p := &Play{
				TrackID:    "track-" + string(rune('a'+i)),
				TrackName:  "Song " + string(rune('A'+i)),
				Artist:     "Artist",
				DurationMS: 200_000,
				PlayedAt:   base.Add(time.Duration(i) * time.Minute),
			}
			if err := repo.Record(ctx, p); err != nil {
				t.Fatalf("failed to record play: %v", err)
			}
			plays = append(plays, p)
		}
		return plays
	}

	t.Run("Record assigns ID", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		plays := seed(t, repo, 1)
		if plays[0].ID == "" {
			t.Error("play ID should be set after recording")
		}
	})

	t.Run("Record validates", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		err := repo.Record(ctx, &Play{TrackName: "No ID"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Recent newest first", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		seed(t, repo, 3)

		plays, err := repo.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("failed to list plays: %v", err)
		}
		if len(plays) != 2 {
			t.Fatalf("expected 2 plays, got %d", len(plays))
		}
		if plays[0].TrackName != "Song C" || plays[1].TrackName != "Song B" {
			t.Errorf("unexpected order: %s, %s", plays[0].TrackName, plays[1].TrackName)
		}
	})

	t.Run("MarkScrobbled", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		plays := seed(t, repo, 3)

		if err := repo.MarkScrobbled(ctx, plays[0].ID); err != nil {
			t.Fatalf("failed to mark play: %v", err)
		}

		pending, err := repo.Unscrobbled(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list unscrobbled plays: %v", err)
		}
		if len(pending) != 2 || pending[0].ID != plays[1].ID {
			t.Errorf("expected the two later plays oldest first, got %d", len(pending))
		}

		if err := repo.MarkScrobbled(ctx, "missing"); err == nil {
			t.Error("expected error marking unknown play")
		}
	})

	t.Run("MarkLatestScrobbled", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		first := &Play{TrackID: "t1", TrackName: "Song", PlayedAt: base}
		second := &Play{TrackID: "t1", TrackName: "Song", PlayedAt: base.Add(time.Hour)}
		for _, p := range []*Play{first, second} {
			if err := repo.Record(ctx, p); err != nil {
				t.Fatalf("failed to record play: %v", err)
			}
		}

		if err := repo.MarkLatestScrobbled(ctx, "t1"); err != nil {
			t.Fatalf("failed to mark play: %v", err)
		}

		pending, err := repo.Unscrobbled(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list unscrobbled plays: %v", err)
		}
		if len(pending) != 1 || pending[0].ID != first.ID {
			t.Errorf("expected only the earlier play to be pending")
		}

		if err := repo.MarkLatestScrobbled(ctx, "unknown"); err == nil {
			t.Error("expected error for a track never played")
		}
	})

	t.Run("Count", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		seed(t, repo, 4)

		n, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("failed to count plays: %v", err)
		}
		if n != 4 {
			t.Errorf("expected 4 plays, got %d", n)
		}
	})
}

type memorySink struct {
	plays []*Play
	err   error
}

func (s *memorySink) Record(_ context.Context, p *Play) error {
	if s.err != nil {
		return s.err
	}
	s.plays = append(s.plays, p)
	return nil
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	synced := func(id string) playback.View {
		return playback.View{
			State: playback.StateSynced,
			Track: &playback.Track{ID: id, Name: "Song " + id, Artists: []playback.Artist{{Name: "A"}, {Name: "B"}}},
		}
	}

	t.Run("records each new track once", func(t *testing.T) {
		sink := &memorySink{}
		r := NewRecorder(sink, shared.NewLogger(io.Discard))

		r.Observe(ctx, synced("1"))
		r.Observe(ctx, synced("1"))
		r.Observe(ctx, synced("2"))
		r.Observe(ctx, synced("1"))

		if len(sink.plays) != 3 {
			t.Fatalf("expected 3 plays, got %d", len(sink.plays))
		}
		if sink.plays[0].Artist != "A, B" {
			t.Errorf("expected joined artists, got %q", sink.plays[0].Artist)
		}
	})

	t.Run("ignores unsynced and empty views", func(t *testing.T) {
		sink := &memorySink{}
		r := NewRecorder(sink, shared.NewLogger(io.Discard))

		r.Observe(ctx, playback.View{State: playback.StateUnknown})
		r.Observe(ctx, playback.View{State: playback.StateSynced})
		v := synced("1")
		v.State = playback.StateNoDevice
		r.Observe(ctx, v)

		if len(sink.plays) != 0 {
			t.Errorf("expected no plays, got %d", len(sink.plays))
		}
	})

	t.Run("retries after failure", func(t *testing.T) {
		sink := &memorySink{err: errors.New("disk full")}
		r := NewRecorder(sink, shared.NewLogger(io.Discard))

		r.Observe(ctx, synced("1"))
		sink.err = nil
		r.Observe(ctx, synced("1"))

		if len(sink.plays) != 1 {
			t.Errorf("expected play recorded on second view, got %d", len(sink.plays))
		}
	})

	t.Run("writes through to sqlite", func(t *testing.T) {
		repo := NewPlayRepository(setupTestDB(t))
		r := NewRecorder(repo, shared.NewLogger(io.Discard))

		r.Observe(ctx, synced("1"))

		plays, err := repo.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("failed to list plays: %v", err)
		}
		if len(plays) != 1 || plays[0].TrackID != "1" {
			t.Errorf("unexpected plays: %+v", plays)
		}
	})
}
