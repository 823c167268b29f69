package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
)

type fakePlayer struct {
	view      playback.View
	sub       *playback.Subscription
	views     chan playback.View
	done      chan struct{}
	calls     []string
	volumes   []int
	seeks     []int
	committed []int
	contexts  []string
	err       error
}

func newFakePlayer(v playback.View) *fakePlayer {
	views := make(chan playback.View, 1)
	done := make(chan struct{})
	return &fakePlayer{
		view:  v,
		views: views,
		done:  done,
		sub:   &playback.Subscription{Views: views, Errors: make(chan playback.ErrorEvent), Done: done},
	}
}

func (f *fakePlayer) View() playback.View               { return f.view }
func (f *fakePlayer) Subscribe() *playback.Subscription { return f.sub }

func (f *fakePlayer) Toggle(context.Context) error {
	f.calls = append(f.calls, "toggle")
	return f.err
}

func (f *fakePlayer) Skip(_ context.Context, dir playback.Direction) error {
	f.calls = append(f.calls, "skip "+dir.String())
	return f.err
}

func (f *fakePlayer) SetVolume(_ context.Context, percent int) error {
	f.volumes = append(f.volumes, percent)
	f.view.Volume = percent
	return f.err
}

func (f *fakePlayer) PlayContext(_ context.Context, uri string) error {
	f.contexts = append(f.contexts, uri)
	return f.err
}

func (f *fakePlayer) BeginSeek() { f.calls = append(f.calls, "begin seek") }

func (f *fakePlayer) UpdateSeek(positionMS int) {
	f.seeks = append(f.seeks, positionMS)
	f.view.PositionMS = positionMS
}

func (f *fakePlayer) CommitSeek(_ context.Context, positionMS int) error {
	f.committed = append(f.committed, positionMS)
	return f.err
}

type fakeFacts struct {
	requested []string
}

func (f *fakeFacts) ArtistFacts(_ context.Context, id string) ([]string, error) {
	f.requested = append(f.requested, id)
	return []string{"fact one about " + id, "fact two about " + id}, nil
}

type fakePlaylists struct{}

func (fakePlaylists) AllPlaylists(context.Context) ([]spotify.Playlist, error) {
	return []spotify.Playlist{{ID: "pl1", Name: "Road Trip"}}, nil
}

func playingView() playback.View {
	return playback.View{
		State: playback.StateSynced,
		Track: &playback.Track{
			ID:         "track-1",
			Name:       "Song One",
			Artists:    []playback.Artist{{ID: "artist-1", Name: "Artist One"}},
			Album:      "Album",
			DurationMS: 200000,
		},
		IsPlaying:  true,
		PositionMS: 60000,
		DurationMS: 200000,
		Volume:     50,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m *Model, msg tea.Msg) tea.Cmd {
	t.Helper()
	_, cmd := m.Update(msg)
	return cmd
}

func TestModelControls(t *testing.T) {
	t.Run("space toggles playback", func(t *testing.T) {
		p := newFakePlayer(playingView())
		m := NewModel(context.Background(), p, nil, nil)

		cmd := update(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		if cmd == nil {
			t.Fatal("expected a command")
		}
		msg := cmd()
		if _, ok := msg.(commandMsg); !ok {
			t.Fatalf("expected commandMsg, got %T", msg)
		}
		if len(p.calls) != 1 || p.calls[0] != "toggle" {
			t.Errorf("calls = %v, want [toggle]", p.calls)
		}
	})

	t.Run("n and b skip", func(t *testing.T) {
		p := newFakePlayer(playingView())
		m := NewModel(context.Background(), p, nil, nil)

		update(t, m, runes("n"))()
		update(t, m, runes("b"))()

		if len(p.calls) != 2 || p.calls[0] != "skip next" || p.calls[1] != "skip previous" {
			t.Errorf("calls = %v", p.calls)
		}
	})

	t.Run("volume is clamped", func(t *testing.T) {
		v := playingView()
		v.Volume = 95
		p := newFakePlayer(v)
		m := NewModel(context.Background(), p, nil, nil)

		update(t, m, runes("+"))()
		if m.view.Volume != 100 {
			t.Errorf("shown volume = %d, want 100", m.view.Volume)
		}
		if len(p.volumes) != 1 || p.volumes[0] != 100 {
			t.Errorf("volumes = %v, want [100]", p.volumes)
		}
	})

	t.Run("mute restores previous volume", func(t *testing.T) {
		v := playingView()
		v.Volume = 70
		p := newFakePlayer(v)
		m := NewModel(context.Background(), p, nil, nil)

		update(t, m, runes("m"))()
		update(t, m, runes("m"))()

		if len(p.volumes) != 2 || p.volumes[0] != 0 || p.volumes[1] != 70 {
			t.Errorf("volumes = %v, want [0 70]", p.volumes)
		}
	})

	t.Run("q quits", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(playingView()), nil, nil)

		cmd := update(t, m, runes("q"))
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})
}

func TestModelSeek(t *testing.T) {
	t.Run("only the last nudge commits", func(t *testing.T) {
		p := newFakePlayer(playingView())
		m := NewModel(context.Background(), p, nil, nil)

		update(t, m, tea.KeyMsg{Type: tea.KeyRight})
		update(t, m, tea.KeyMsg{Type: tea.KeyRight})

		if len(p.calls) != 1 || p.calls[0] != "begin seek" {
			t.Errorf("calls = %v, want a single begin seek", p.calls)
		}
		if len(p.seeks) != 2 || p.seeks[1] != 70000 {
			t.Errorf("seeks = %v, want [65000 70000]", p.seeks)
		}

		if cmd := update(t, m, seekCommitMsg{seq: 1}); cmd != nil {
			t.Error("stale commit should be ignored")
		}

		cmd := update(t, m, seekCommitMsg{seq: 2})
		if cmd == nil {
			t.Fatal("expected commit command")
		}
		cmd()
		if len(p.committed) != 1 || p.committed[0] != 70000 {
			t.Errorf("committed = %v, want [70000]", p.committed)
		}
		if m.seeking {
			t.Error("seek should be closed after commit")
		}
	})

	t.Run("target stays inside the track", func(t *testing.T) {
		v := playingView()
		v.PositionMS = 2000
		p := newFakePlayer(v)
		m := NewModel(context.Background(), p, nil, nil)

		update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
		if m.seekTarget != 0 {
			t.Errorf("seekTarget = %d, want 0", m.seekTarget)
		}
	})

	t.Run("no track means no seek", func(t *testing.T) {
		p := newFakePlayer(playback.View{State: playback.StateSynced})
		m := NewModel(context.Background(), p, nil, nil)

		if cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRight}); cmd != nil {
			t.Error("expected no command without a track")
		}
	})
}

func TestModelSubscription(t *testing.T) {
	t.Run("new artist loads facts", func(t *testing.T) {
		p := newFakePlayer(playback.View{})
		facts := &fakeFacts{}
		m := NewModel(context.Background(), p, facts, nil)

		cmd := update(t, m, viewMsg(playingView()))
		if cmd == nil {
			t.Fatal("expected commands")
		}
		if m.artistID != "artist-1" {
			t.Errorf("artistID = %q, want artist-1", m.artistID)
		}

		msg, ok := m.fetchFacts("artist-1")().(factsMsg)
		if !ok {
			t.Fatalf("expected factsMsg")
		}
		update(t, m, msg)
		if got := m.rotation.Current(); got != "fact one about artist-1" {
			t.Errorf("current fact = %q", got)
		}

		update(t, m, factTickMsg{})
		if got := m.rotation.Current(); got != "fact two about artist-1" {
			t.Errorf("after tick fact = %q", got)
		}
	})

	t.Run("facts for a previous artist are dropped", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(playback.View{}), &fakeFacts{}, nil)
		m.artistID = "artist-2"

		update(t, m, factsMsg{artistID: "artist-1", facts: []string{"stale"}})
		if m.rotation != nil {
			t.Error("stale facts should be ignored")
		}
	})

	t.Run("waits on the subscription", func(t *testing.T) {
		p := newFakePlayer(playback.View{})
		m := NewModel(context.Background(), p, nil, nil)

		p.views <- playingView()
		msg := m.waitForView()()
		v, ok := msg.(viewMsg)
		if !ok || v.Track == nil || v.Track.ID != "track-1" {
			t.Fatalf("unexpected message %#v", msg)
		}

		close(p.done)
		if _, ok := m.waitForView()().(closedMsg); !ok {
			t.Error("expected closedMsg after done")
		}
	})

	t.Run("closed subscription quits", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(playback.View{}), nil, nil)

		cmd := update(t, m, closedMsg{})
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
	})
}

func TestModelErrors(t *testing.T) {
	t.Run("reauth asks to sign in", func(t *testing.T) {
		m := NewModel(context.Background(), newFakePlayer(playingView()), nil, nil)

		update(t, m, errorEventMsg{Op: "poll", Err: shared.NewReauthError(400, errors.New("invalid_grant"))})
		if !strings.Contains(m.View(), "vibeflow auth login") {
			t.Errorf("view should tell the user to sign in:\n%s", m.View())
		}
	})

	t.Run("no device", func(t *testing.T) {
		v := playingView()
		v.State = playback.StateNoDevice
		m := NewModel(context.Background(), newFakePlayer(v), nil, nil)

		if !strings.Contains(m.View(), "No active device") {
			t.Errorf("view should report no device:\n%s", m.View())
		}
	})

	t.Run("command failure is shown", func(t *testing.T) {
		p := newFakePlayer(playingView())
		m := NewModel(context.Background(), p, nil, nil)

		update(t, m, commandMsg{op: "toggle", err: errors.New("boom")})
		if !strings.Contains(m.View(), "boom") {
			t.Errorf("view should include the error:\n%s", m.View())
		}

		update(t, m, commandMsg{op: "toggle"})
		if m.err != nil {
			t.Error("success should clear the error")
		}
	})
}

func TestModelPlaylists(t *testing.T) {
	p := newFakePlayer(playingView())
	m := NewModel(context.Background(), p, nil, fakePlaylists{})

	cmd := update(t, m, runes("p"))
	if m.screen != PlaylistView {
		t.Fatal("expected playlist view")
	}
	update(t, m, cmd())

	cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected play command")
	}
	cmd()

	if m.screen != PlayerView {
		t.Error("expected to return to the player")
	}
	if len(p.contexts) != 1 || p.contexts[0] != spotify.PlaylistURI("pl1") {
		t.Errorf("contexts = %v", p.contexts)
	}
}

func TestModelView(t *testing.T) {
	m := NewModel(context.Background(), newFakePlayer(playingView()), nil, nil)
	out := m.View()

	for _, want := range []string{"Song One", "Artist One", "1:00 / 3:20", "Volume"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestModelViewFitsWidth(t *testing.T) {
	v := playingView()
	v.Track.Name = "An Extremely Long Song Title That Keeps Going On"
	m := NewModel(context.Background(), newFakePlayer(v), nil, nil)

	t.Run("full title without a window size", func(t *testing.T) {
		if out := m.View(); !strings.Contains(out, v.Track.Name) {
			t.Errorf("view missing full title:\n%s", out)
		}
	})

	t.Run("truncates to the window", func(t *testing.T) {
		update(t, m, tea.WindowSizeMsg{Width: 30, Height: 20})
		out := m.View()
		if strings.Contains(out, v.Track.Name) {
			t.Errorf("title not truncated:\n%s", out)
		}
		if !strings.Contains(out, "An Extremely Long") || !strings.Contains(out, "...") {
			t.Errorf("truncated title missing prefix or tail:\n%s", out)
		}
	})
}
