// Package scrobble reports playback to Last.fm.
//
// A [Scrobbler] subscribes to the playback reconciler. It announces each new track as
// "now playing" and submits a scrobble once the track has played for half its length or
// four minutes, whichever comes first.
package scrobble
