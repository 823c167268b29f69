package shared

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")
	ErrReauthRequired   = fmt.Errorf("re-authorization required")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrNoActiveDevice     = fmt.Errorf("no active device")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrArtistNotFound     = fmt.Errorf("artist not found")

	// Lifecycle errors
	ErrStopped = fmt.Errorf("reconciler stopped")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// AuthError reports a failed token operation.
//
// Status carries the token endpoint's HTTP status, or 0 when the request never got a response.
// When ReauthRequired is set the stored credential is unusable and the user has to sign in again.
type AuthError struct {
	Status         int
	ReauthRequired bool
	Err            error
}

func (e *AuthError) Error() string {
	msg := ErrRefreshFailed.Error()
	if e.ReauthRequired {
		msg = ErrReauthRequired.Error()
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *AuthError) Unwrap() []error {
	errs := []error{ErrRefreshFailed}
	if e.ReauthRequired {
		errs = append(errs, ErrReauthRequired)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewReauthError builds an [AuthError] that requires the user to authorize again.
func NewReauthError(status int, err error) *AuthError {
	return &AuthError{Status: status, ReauthRequired: true, Err: err}
}

// IsReauthRequired reports whether err carries an [AuthError] demanding a new sign-in.
func IsReauthRequired(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr) && authErr.ReauthRequired
}

// RemoteUnavailableError reports a transport failure or timeout talking to the playback service.
type RemoteUnavailableError struct {
	Op  string
	Err error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, ErrServiceUnavailable)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, ErrServiceUnavailable, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrServiceUnavailable}
	}
	return []error{ErrServiceUnavailable, e.Err}
}

// Timeout reports whether the failure was a deadline.
func (e *RemoteUnavailableError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, ErrTimeout)
}

// APIError is a non-2xx response from the Web API.
type APIError struct {
	Status  int
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	text := http.StatusText(e.Status)
	switch {
	case e.Message != "" && e.Reason != "":
		return fmt.Sprintf("%s: %d %s: %s (%s)", ErrAPIRequest, e.Status, text, e.Message, e.Reason)
	case e.Message != "":
		return fmt.Sprintf("%s: %d %s: %s", ErrAPIRequest, e.Status, text, e.Message)
	default:
		return fmt.Sprintf("%s: %d %s", ErrAPIRequest, e.Status, text)
	}
}

func (e *APIError) Unwrap() error { return ErrAPIRequest }

// ConfigError reports a missing or malformed configuration value.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidConfig, e.Field)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
