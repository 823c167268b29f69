// Package playback keeps a local view of the user's Spotify playback in step with the remote
// player.
//
// The [Reconciler] polls the remote on a fixed interval, advances the displayed position between
// polls, and turns user intents (toggle, skip, volume, seek) into remote commands with
// optimistic local updates. An authoritative poll always wins, except for the position while a
// seek is in progress.
package playback
