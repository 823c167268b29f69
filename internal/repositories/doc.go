// Package repositories implements SQLite persistence for the dashboard.
//
// Key Implementations:
//   - [CredentialRepository] : the stored Spotify session, one row per provider
//   - [PlayRepository] : local listening history with scrobble tracking
//   - [Recorder] : subscribes to the playback reconciler and records each new track
package repositories
