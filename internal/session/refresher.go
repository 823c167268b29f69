package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/desertthunder/vibeflow/internal/shared"
	"golang.org/x/oauth2"
)

// OAuthRefresher refreshes tokens against an OAuth2 token endpoint using client credentials
// in the Authorization header.
type OAuthRefresher struct {
	config *oauth2.Config
	client *http.Client
}

// NewOAuthRefresher wraps config. client may be nil to use [http.DefaultClient].
func NewOAuthRefresher(config *oauth2.Config, client *http.Client) *OAuthRefresher {
	return &OAuthRefresher{config: config, client: client}
}

// Refresh performs a refresh_token grant.
func (r *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if refreshToken == "" {
		return nil, shared.NewReauthError(0, shared.ErrNoRefreshToken)
	}
	if r.client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.client)
	}

	tok, err := r.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}

	res := &RefreshResult{AccessToken: tok.AccessToken}
	if tok.RefreshToken != refreshToken {
		res.RefreshToken = tok.RefreshToken
	}
	switch {
	case tok.ExpiresIn > 0:
		res.ExpiresIn = time.Duration(tok.ExpiresIn) * time.Second
	case !tok.Expiry.IsZero():
		res.ExpiresIn = time.Until(tok.Expiry)
	}
	return res, nil
}

// classifyRefreshError turns an oauth2 failure into an [*shared.AuthError].
//
// invalid_grant means the refresh token was revoked or has expired, so only a new
// authorization can recover.
func classifyRefreshError(err error) *shared.AuthError {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return asAuthError(err)
	}

	status := 0
	if rErr.Response != nil {
		status = rErr.Response.StatusCode
	}
	if rErr.ErrorCode == "invalid_grant" {
		return shared.NewReauthError(status, err)
	}
	return &shared.AuthError{Status: status, Err: err}
}
