// Package ui implements the terminal player using bubbletea's Elm architecture.
//
// The [Model] subscribes to a running playback reconciler and redraws on every snapshot it
// publishes. Control keys run as [tea.Cmd]s so the UI never blocks on the Web API:
//   - space toggles play/pause, n and b skip
//   - left/right (h/l) move a local seek target that is committed once the keys go quiet
//   - +/- change the volume, m mutes and restores it
//   - p opens the playlist browser, enter starts the selected playlist
//
// Artist facts for the playing track rotate under the progress bar. When the session needs
// re-authorization the player shows how to sign in again instead of an error.
package ui
