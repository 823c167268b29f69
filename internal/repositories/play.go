package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/vibeflow/internal/shared"
)

// Play is one observed listen.
type Play struct {
	ID         string    `json:"id"`
	TrackID    string    `json:"track_id"`
	TrackName  string    `json:"track_name"`
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	DurationMS int       `json:"duration_ms"`
	PlayedAt   time.Time `json:"played_at"`
	Scrobbled  bool      `json:"scrobbled"`
}

// Validate checks the fields required for insertion.
func (p *Play) Validate() error {
	if p.TrackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}
	if p.TrackName == "" {
		return fmt.Errorf("%w: track name", shared.ErrMissingArgument)
	}
	if p.DurationMS < 0 {
		return fmt.Errorf("%w: negative duration", shared.ErrInvalidArgument)
	}
	return nil
}

// PlayRepository stores listening history.
type PlayRepository struct {
	db *sql.DB
}

// NewPlayRepository creates a new [PlayRepository] with the given database connection
func NewPlayRepository(db *sql.DB) *PlayRepository {
	return &PlayRepository{db: db}
}

// Record inserts a play, assigning its ID.
func (r *PlayRepository) Record(ctx context.Context, p *Play) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if p.PlayedAt.IsZero() {
		p.PlayedAt = time.Now()
	}
	p.ID = shared.GenerateID()

	query := `
		INSERT INTO plays (id, track_id, track_name, artist, album, duration_ms, played_at, scrobbled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TrackID, p.TrackName, p.Artist, p.Album, p.DurationMS, p.PlayedAt.UTC(), p.Scrobbled)
	if err != nil {
		return fmt.Errorf("failed to insert play: %w", err)
	}
	return nil
}

// Recent returns up to limit plays, newest first.
func (r *PlayRepository) Recent(ctx context.Context, limit int) ([]*Play, error) {
	return r.list(ctx, `
		SELECT id, track_id, track_name, artist, album, duration_ms, played_at, scrobbled
		FROM plays
		ORDER BY played_at DESC
		LIMIT ?
	`, limit)
}

// Unscrobbled returns up to limit plays not yet sent to Last.fm, oldest first.
func (r *PlayRepository) Unscrobbled(ctx context.Context, limit int) ([]*Play, error) {
	return r.list(ctx, `
		SELECT id, track_id, track_name, artist, album, duration_ms, played_at, scrobbled
		FROM plays
		WHERE scrobbled = 0
		ORDER BY played_at ASC
		LIMIT ?
	`, limit)
}

// MarkScrobbled flags a play as submitted.
func (r *PlayRepository) MarkScrobbled(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE plays SET scrobbled = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to update play: %w", err)
	}
	return expectRow(result, "play", id)
}

// MarkLatestScrobbled flags the most recent play of trackID as submitted.
func (r *PlayRepository) MarkLatestScrobbled(ctx context.Context, trackID string) error {
	query := `
		UPDATE plays SET scrobbled = 1
		WHERE id = (SELECT id FROM plays WHERE track_id = ? ORDER BY played_at DESC LIMIT 1)
	`
	result, err := r.db.ExecContext(ctx, query, trackID)
	if err != nil {
		return fmt.Errorf("failed to update play: %w", err)
	}
	return expectRow(result, "play for track", trackID)
}

// Count returns the number of stored plays.
func (r *PlayRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plays`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plays: %w", err)
	}
	return n, nil
}

func (r *PlayRepository) list(ctx context.Context, query string, limit int) ([]*Play, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query plays: %w", err)
	}
	defer rows.Close()

	var plays []*Play
	for rows.Next() {
		var p Play
		err := rows.Scan(&p.ID, &p.TrackID, &p.TrackName, &p.Artist, &p.Album, &p.DurationMS, &p.PlayedAt, &p.Scrobbled)
		if err != nil {
			return nil, fmt.Errorf("failed to scan play: %w", err)
		}
		plays = append(plays, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return plays, nil
}
