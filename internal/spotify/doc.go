// Package spotify is a small client for the Spotify Web API.
//
// It covers the player endpoints used for reconciliation (now playing, play/pause, skip, seek,
// volume) and the library reads behind the profile, playlist and artist views.
//
// Response types follow https://developer.spotify.com/documentation/web-api/reference/
package spotify
