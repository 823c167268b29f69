// Package server provides HTTP routing, middleware and handlers for the CLI login callback and the dashboard API.
//
// # Router Infrastructure
//
// [BasicRouter] registers "METHOD /path" patterns on an [http.ServeMux]. [Middleware] wraps handlers in
// reverse order (last added executes first).
//
// # OAuth
//
// [OAuthHandler] serves the one-shot callback used by "vibeflow auth login": it validates state,
// exchanges the code and publishes the token on a channel. [AuthHandler] runs the same flow for the
// dashboard, keeping the state in a short-lived cookie and initializing the session manager.
//
// # Dashboard
//
// [DashboardHandler] exposes the playback reconciler, artist facts, profile and playlists as JSON.
// Domain errors are mapped to statuses by [StatusFor]: no active device is 409, a session that needs a
// new login is 401 with a login_url, an unreachable Spotify is 503, other upstream failures 502 and
// invalid input 400.
package server
