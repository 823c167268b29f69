package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vibeflow/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey = "refresh"

	// DefaultRefreshTimeout bounds a single call to the token endpoint.
	DefaultRefreshTimeout = 10 * time.Second

	// DefaultTokenTTL is used when the token endpoint omits expires_in.
	DefaultTokenTTL = time.Hour
)

// Credential is the access/refresh token pair of a signed-in user.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the access token is no longer usable at now.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// RefreshResult is what the token endpoint returned for a refresh grant.
//
// RefreshToken is empty when the endpoint did not rotate it.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Refresher exchanges a refresh token for a new access token.
//
// Implementations return a [*shared.AuthError] on failure.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// Store persists the credential across process restarts.
type Store interface {
	Save(ctx context.Context, cred Credential) error
	Clear(ctx context.Context) error
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Refresher      Refresher
	Store          Store
	Logger         *log.Logger
	RefreshTimeout time.Duration
	Now            func() time.Time
}

// Manager holds at most one [Credential] and keeps its access token fresh.
type Manager struct {
	refresher Refresher
	store     Store
	logger    *log.Logger
	timeout   time.Duration
	now       func() time.Time

	mu   sync.Mutex
	cred *Credential
	// gen changes on every Initialize and Invalidate so a refresh that started
	// against an older credential cannot overwrite a newer one.
	gen uint64

	group singleflight.Group
}

// NewManager creates an empty [Manager]. Call Initialize after the user signs in.
func NewManager(opts ManagerOpts) *Manager {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		refresher: opts.Refresher,
		store:     opts.Store,
		logger:    shared.WithLogger(opts.Logger, "component", "session"),
		timeout:   opts.RefreshTimeout,
		now:       opts.Now,
	}
}

// Initialize stores a freshly issued credential, replacing any previous one.
func (m *Manager) Initialize(accessToken, refreshToken string, expiresAt time.Time) error {
	if accessToken == "" {
		return &shared.ConfigError{Field: "access_token", Reason: "is empty"}
	}
	if refreshToken == "" {
		return &shared.ConfigError{Field: "refresh_token", Reason: "is empty"}
	}

	cred := Credential{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresAt: expiresAt}

	m.mu.Lock()
	m.cred = &cred
	m.gen++
	m.mu.Unlock()

	m.persist(cred)
	return nil
}

// InitializeToken stores the result of an authorization code exchange.
func (m *Manager) InitializeToken(tok *oauth2.Token) error {
	if tok == nil {
		return &shared.ConfigError{Field: "token", Reason: "is nil"}
	}
	return m.Initialize(tok.AccessToken, tok.RefreshToken, m.expiryOf(tok))
}

// Restore loads a credential previously written to the [Store].
//
// Unlike Initialize it does not write the credential back.
func (m *Manager) Restore(cred Credential) error {
	if cred.AccessToken == "" || cred.RefreshToken == "" {
		return &shared.ConfigError{Field: "credential", Reason: "is incomplete"}
	}

	m.mu.Lock()
	m.cred = &cred
	m.gen++
	m.mu.Unlock()
	return nil
}

// Token returns an access token that is valid now, refreshing it first if it has expired.
//
// Concurrent callers that find the token expired wait on the same refresh. A caller whose ctx
// ends stops waiting without cancelling the refresh for everyone else.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	cred := m.cred
	m.mu.Unlock()

	if cred == nil {
		return "", shared.NewReauthError(0, shared.ErrNotAuthenticated)
	}
	if !cred.Expired(m.now()) {
		return cred.AccessToken, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := m.group.DoChan(refreshKey, func() (any, error) {
		return m.refresh(detached)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Invalidate discards the credential. Calling it again is a no-op.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	had := m.cred != nil
	m.cred = nil
	m.gen++
	m.mu.Unlock()

	if !had {
		return
	}
	m.logger.Info("session invalidated")

	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear stored credential", "error", err)
	}
}

// Credential returns a copy of the current credential.
func (m *Manager) Credential() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return Credential{}, false
	}
	return *m.cred, true
}

// Authenticated reports whether a credential is held, valid or not.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cred != nil
}

func (m *Manager) refresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	cred, gen := m.cred, m.gen
	m.mu.Unlock()

	if cred == nil {
		return "", shared.NewReauthError(0, shared.ErrNotAuthenticated)
	}
	// A flight that finished just before this one started may already have refreshed.
	if !cred.Expired(m.now()) {
		return cred.AccessToken, nil
	}
	if m.refresher == nil {
		return "", &shared.AuthError{Err: shared.ErrNoRefreshToken}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	m.logger.Debug("refreshing access token", "expired_at", cred.ExpiresAt)
	res, err := m.refresher.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		authErr := asAuthError(err)
		if authErr.ReauthRequired {
			m.invalidateIf(gen)
		}
		m.logger.Warn("token refresh failed", "status", authErr.Status, "reauth", authErr.ReauthRequired, "error", authErr.Err)
		return "", authErr
	}
	if res == nil || res.AccessToken == "" {
		err := &shared.AuthError{Err: errors.New("token response missing access_token")}
		m.logger.Warn("token refresh failed", "error", err)
		return "", err
	}

	ttl := res.ExpiresIn
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	next := Credential{
		AccessToken:  res.AccessToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    m.now().Add(ttl),
	}
	if res.RefreshToken != "" {
		next.RefreshToken = res.RefreshToken
	}

	m.mu.Lock()
	if m.gen != gen {
		current := m.cred
		m.mu.Unlock()
		m.logger.Debug("discarding refresh result for replaced credential")
		if current == nil {
			return "", shared.NewReauthError(0, shared.ErrNotAuthenticated)
		}
		return current.AccessToken, nil
	}
	m.cred = &next
	m.mu.Unlock()

	m.logger.Debug("access token refreshed", "expires_at", next.ExpiresAt)
	m.persist(next)
	return next.AccessToken, nil
}

// invalidateIf drops the credential only if nothing replaced it since gen was read.
func (m *Manager) invalidateIf(gen uint64) {
	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.Invalidate()
}

func (m *Manager) persist(cred Credential) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()
	if err := m.store.Save(ctx, cred); err != nil {
		m.logger.Warn("failed to persist credential", "error", err)
	}
}

func (m *Manager) expiryOf(tok *oauth2.Token) time.Time {
	switch {
	case tok.ExpiresIn > 0:
		return m.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	case !tok.Expiry.IsZero():
		return tok.Expiry
	default:
		return m.now().Add(DefaultTokenTTL)
	}
}

func asAuthError(err error) *shared.AuthError {
	var authErr *shared.AuthError
	if errors.As(err, &authErr) {
		return authErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &shared.AuthError{Err: fmt.Errorf("%w: %v", shared.ErrTimeout, err)}
	}
	return &shared.AuthError{Err: err}
}
