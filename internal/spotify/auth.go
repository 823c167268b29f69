package spotify

import (
	"github.com/desertthunder/vibeflow/internal/shared"
	"golang.org/x/oauth2"
)

const (
	AuthURL  = "https://accounts.spotify.com/authorize"
	TokenURL = "https://accounts.spotify.com/api/token"
)

// Scopes requested at sign-in.
var Scopes = []string{
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"user-read-currently-playing",
	"user-read-recently-played",
	"user-top-read",
	"streaming",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// NewOAuthConfig builds the authorization code flow config for the app in cfg.
//
// Client credentials go in the Authorization header, which the accounts service requires for
// refresh grants.
func NewOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// AuthCodeURL returns the consent page URL. show_dialog forces the account picker so a signed
// out user can switch accounts.
func AuthCodeURL(config *oauth2.Config, state string) string {
	return config.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "true"))
}
