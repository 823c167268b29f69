package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	toggle     key.Binding
	next       key.Binding
	previous   key.Binding
	seekBack   key.Binding
	seekFwd    key.Binding
	volumeUp   key.Binding
	volumeDown key.Binding
	mute       key.Binding
	playlists  key.Binding
	enter      key.Binding
	back       key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		toggle:     key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		next:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		previous:   key.NewBinding(key.WithKeys("b"), key.WithHelp("b", "previous")),
		seekBack:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "-5s")),
		seekFwd:    key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "+5s")),
		volumeUp:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "volume up")),
		volumeDown: key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "volume down")),
		mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		playlists:  key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "playlists")),
		enter:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		back:       key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.next, k.previous, k.seekFwd, k.volumeUp, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.toggle, k.next, k.previous},
		{k.seekBack, k.seekFwd},
		{k.volumeUp, k.volumeDown, k.mute},
		{k.playlists, k.quit},
	}
}
