// Package session owns the Spotify credential for the lifetime of a signed-in session.
//
// A [Manager] hands out valid access tokens, refreshing them through a [Refresher] when they
// expire. Concurrent callers share a single in-flight refresh.
package session
