package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/vibeflow/internal/session"
	"github.com/desertthunder/vibeflow/internal/shared"
)

const ProviderSpotify = "spotify"

// CredentialRepository persists the session credential. It implements [session.Store].
type CredentialRepository struct {
	db       *sql.DB
	provider string
	now      func() time.Time
}

// NewCredentialRepository creates a [CredentialRepository] for the Spotify provider.
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db, provider: ProviderSpotify, now: time.Now}
}

// Save inserts or replaces the provider's credential.
func (r *CredentialRepository) Save(ctx context.Context, cred session.Credential) error {
	now := r.now().UTC()
	query := `
		INSERT INTO credentials (id, provider, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		shared.GenerateID(), r.provider, cred.AccessToken, cred.RefreshToken, cred.ExpiresAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Load returns the stored credential or [shared.ErrNotAuthenticated] when there is none.
func (r *CredentialRepository) Load(ctx context.Context) (*session.Credential, error) {
	query := `
		SELECT access_token, refresh_token, expires_at
		FROM credentials
		WHERE provider = ?
	`

	var cred session.Credential
	err := r.db.QueryRowContext(ctx, query, r.provider).Scan(&cred.AccessToken, &cred.RefreshToken, &cred.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}
	return &cred, nil
}

// Clear deletes the provider's credential. Clearing an empty store is not an error.
func (r *CredentialRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM credentials WHERE provider = ?`, r.provider); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

var _ session.Store = (*CredentialRepository)(nil)
