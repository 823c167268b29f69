package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vibeflow/internal/insights"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
)

const (
	seekStepMS      = 5000
	volumeStep      = 10
	seekCommitDelay = 600 * time.Millisecond
)

// ViewState represents the current screen in the TUI.
type ViewState int

const (
	PlayerView ViewState = iota
	PlaylistView
)

// Player is the playback reconciler as driven by the TUI.
type Player interface {
	View() playback.View
	Subscribe() *playback.Subscription
	Toggle(ctx context.Context) error
	Skip(ctx context.Context, dir playback.Direction) error
	SetVolume(ctx context.Context, percent int) error
	PlayContext(ctx context.Context, contextURI string) error
	BeginSeek()
	UpdateSeek(positionMS int)
	CommitSeek(ctx context.Context, positionMS int) error
}

// Facts supplies artist facts for the playing track.
type Facts interface {
	ArtistFacts(ctx context.Context, artistID string) ([]string, error)
}

// Playlists lists the user's playlists.
type Playlists interface {
	AllPlaylists(ctx context.Context) ([]spotify.Playlist, error)
}

// Model is the now-playing screen.
type Model struct {
	ctx       context.Context
	player    Player
	facts     Facts
	playlists Playlists
	sub       *playback.Subscription

	screen   ViewState
	view     playback.View
	artistID string
	rotation *insights.Rotation

	seeking    bool
	seekTarget int
	seekSeq    int

	lastVolume int
	status     string
	err        error

	width        int
	height       int
	bar          progress.Model
	playlistList list.Model
	help         help.Model
	keys         keyMap
}

// NewModel creates the TUI over a running reconciler. facts and playlists may be nil.
func NewModel(ctx context.Context, player Player, facts Facts, playlists Playlists) *Model {
	return &Model{
		ctx:        ctx,
		player:     player,
		facts:      facts,
		playlists:  playlists,
		sub:        player.Subscribe(),
		view:       player.View(),
		lastVolume: playback.DefaultVolume,
		bar:        progress.New(progress.WithSolidFill("#1DB954"), progress.WithoutPercentage(), progress.WithWidth(40)),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init starts listening to the reconciler and the fact rotation.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForView(), factTick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = max(10, min(60, msg.Width-20))
		if m.screen == PlaylistView {
			m.playlistList.SetSize(msg.Width-4, msg.Height-4)
		}
		return m, nil

	case tea.KeyMsg:
		if m.screen == PlaylistView {
			return m.handlePlaylistKeys(msg)
		}
		return m.handlePlayerKeys(msg)

	case viewMsg:
		return m, tea.Batch(m.applyView(playback.View(msg)), m.waitForView())

	case errorEventMsg:
		m.setError(msg.Err)
		return m, m.waitForView()

	case closedMsg:
		return m, tea.Quit

	case commandMsg:
		if msg.err != nil {
			m.setError(msg.err)
		} else {
			m.err = nil
			m.status = ""
		}
		m.view = m.player.View()
		return m, nil

	case factsMsg:
		if msg.artistID != m.artistID {
			return m, nil
		}
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.rotation = insights.NewRotation(msg.facts)
		return m, nil

	case factTickMsg:
		m.rotation.Advance()
		return m, factTick()

	case seekCommitMsg:
		if !m.seeking || msg.seq != m.seekSeq {
			return m, nil
		}
		m.seeking = false
		target := m.seekTarget
		return m, m.run("seek", func(ctx context.Context) error { return m.player.CommitSeek(ctx, target) })

	case playlistsMsg:
		if msg.err != nil {
			m.setError(msg.err)
			m.screen = PlayerView
			return m, nil
		}
		m.playlistList = list.New(playlistItems(msg.playlists), list.NewDefaultDelegate(), max(m.width-4, 20), max(m.height-4, 10))
		m.playlistList.Title = "Your Playlists"
		return m, nil
	}

	return m, nil
}

func (m *Model) handlePlayerKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggle):
		return m, m.run("toggle", m.player.Toggle)
	case key.Matches(msg, m.keys.next):
		return m, m.run("next", func(ctx context.Context) error { return m.player.Skip(ctx, playback.Next) })
	case key.Matches(msg, m.keys.previous):
		return m, m.run("previous", func(ctx context.Context) error { return m.player.Skip(ctx, playback.Previous) })
	case key.Matches(msg, m.keys.seekBack):
		return m, m.nudgeSeek(-seekStepMS)
	case key.Matches(msg, m.keys.seekFwd):
		return m, m.nudgeSeek(seekStepMS)
	case key.Matches(msg, m.keys.volumeUp):
		return m, m.setVolume(m.view.Volume + volumeStep)
	case key.Matches(msg, m.keys.volumeDown):
		return m, m.setVolume(m.view.Volume - volumeStep)
	case key.Matches(msg, m.keys.mute):
		if m.view.Volume > 0 {
			m.lastVolume = m.view.Volume
			return m, m.setVolume(0)
		}
		return m, m.setVolume(m.lastVolume)
	case key.Matches(msg, m.keys.playlists):
		if m.playlists == nil {
			return m, nil
		}
		m.screen = PlaylistView
		return m, m.fetchPlaylists()
	}
	return m, nil
}

func (m *Model) handlePlaylistKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.playlistList.FilterState() == list.Filtering
	if !filtering {
		switch {
		case key.Matches(msg, m.keys.back):
			m.screen = PlayerView
			return m, nil
		case msg.String() == "ctrl+c":
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.playlistList.SelectedItem().(playlistItem); ok {
				m.screen = PlayerView
				uri := spotify.PlaylistURI(item.playlist.ID)
				return m, m.run("play playlist", func(ctx context.Context) error { return m.player.PlayContext(ctx, uri) })
			}
			return m, nil
		}
	}

	if m.playlistList.Items() == nil {
		return m, nil
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

// nudgeSeek moves the seek target and restarts the commit timer.
func (m *Model) nudgeSeek(deltaMS int) tea.Cmd {
	if m.view.Track == nil {
		return nil
	}
	if !m.seeking {
		m.player.BeginSeek()
		m.seeking = true
		m.seekTarget = m.view.PositionMS
	}

	m.seekTarget = shared.Clamp(m.seekTarget+deltaMS, 0, max(m.view.DurationMS, 0))
	m.player.UpdateSeek(m.seekTarget)
	m.view = m.player.View()
	m.seekSeq++

	seq := m.seekSeq
	return tea.Tick(seekCommitDelay, func(time.Time) tea.Msg { return seekCommitMsg{seq: seq} })
}

func (m *Model) setVolume(percent int) tea.Cmd {
	percent = shared.Clamp(percent, 0, 100)
	cmd := m.run("volume", func(ctx context.Context) error { return m.player.SetVolume(ctx, percent) })
	m.view.Volume = percent
	return cmd
}

// applyView takes a reconciler snapshot and reloads facts when the artist changes.
func (m *Model) applyView(v playback.View) tea.Cmd {
	m.view = v
	if v.State != playback.StateNoDevice && m.status == noDeviceStatus {
		m.status = ""
	}

	id := ""
	if v.Track != nil {
		if a, ok := v.Track.PrimaryArtist(); ok {
			id = a.ID
		}
	}
	if id == m.artistID {
		return nil
	}
	m.artistID = id
	m.rotation = nil
	if id == "" || m.facts == nil {
		return nil
	}
	return m.fetchFacts(id)
}

const noDeviceStatus = "No active device. Start Spotify on a device, then press space."

func (m *Model) setError(err error) {
	switch {
	case shared.IsReauthRequired(err):
		m.status = "Session expired. Run `vibeflow auth login` to sign in again."
	case errors.Is(err, shared.ErrNoActiveDevice):
		m.status = noDeviceStatus
	default:
		m.status = ""
	}
	m.err = err
}

func (m *Model) run(op string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) waitForView() tea.Cmd {
	sub := m.sub
	return func() tea.Msg {
		select {
		case v := <-sub.Views:
			return viewMsg(v)
		case e := <-sub.Errors:
			return errorEventMsg(e)
		case <-sub.Done:
			return closedMsg{}
		}
	}
}

func (m *Model) fetchFacts(artistID string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		facts, err := m.facts.ArtistFacts(ctx, artistID)
		return factsMsg{artistID: artistID, facts: facts, err: err}
	}
}

func (m *Model) fetchPlaylists() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		playlists, err := m.playlists.AllPlaylists(ctx)
		return playlistsMsg{playlists: playlists, err: err}
	}
}

func factTick() tea.Cmd {
	return tea.Tick(insights.FactInterval, func(time.Time) tea.Msg { return factTickMsg{} })
}
