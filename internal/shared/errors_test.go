package shared

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthError(t *testing.T) {
	t.Run("transient failure matches refresh sentinel only", func(t *testing.T) {
		err := fmt.Errorf("get token: %w", &AuthError{Status: 503})

		assert.ErrorIs(t, err, ErrRefreshFailed)
		assert.NotErrorIs(t, err, ErrReauthRequired)
		assert.False(t, IsReauthRequired(err))
		assert.Contains(t, err.Error(), "status 503")
	})

	t.Run("reauth failure matches both sentinels", func(t *testing.T) {
		cause := errors.New("invalid_grant")
		err := NewReauthError(400, cause)

		assert.ErrorIs(t, err, ErrRefreshFailed)
		assert.ErrorIs(t, err, ErrReauthRequired)
		assert.ErrorIs(t, err, cause)
		assert.True(t, IsReauthRequired(err))
	})
}

func TestRemoteUnavailableError(t *testing.T) {
	err := &RemoteUnavailableError{Op: "GET /me/player/currently-playing", Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, err.Timeout())

	other := &RemoteUnavailableError{Op: "PUT /me/player/pause", Err: errors.New("connection refused")}
	assert.False(t, other.Timeout())
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 403, Reason: "PREMIUM_REQUIRED", Message: "Player command failed: Premium required"}

	assert.ErrorIs(t, err, ErrAPIRequest)
	assert.Contains(t, err.Error(), "403 Forbidden")
	assert.Contains(t, err.Error(), "PREMIUM_REQUIRED")
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "refresh_token", Reason: "is empty"}

	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "invalid configuration: refresh_token is empty", err.Error())
}
