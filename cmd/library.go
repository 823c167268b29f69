package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/vibeflow/internal/formatter"
	"github.com/desertthunder/vibeflow/internal/repositories"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/spotify"
	"github.com/urfave/cli/v3"
)

// Profile prints top artists, top tracks, recent plays and the listening estimate.
func (r *Runner) Profile(ctx context.Context, cmd *cli.Command) error {
	st, err := r.open(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	profile, err := st.insights.Profile(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, cmd.Bool("pretty"))
	}
	r.writePlainHeader("Profile")
	return r.writePlain("%s", formatter.ProfileText(profile))
}

// PlaylistsList prints every playlist the user follows or owns.
func (r *Runner) PlaylistsList(ctx context.Context, cmd *cli.Command) error {
	format := strings.ToLower(cmd.String("format"))
	switch format {
	case "text", "json", "md", "markdown", "csv":
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	st, err := r.open(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	r.logger.Info("listing spotify playlists")
	playlists, err := st.client.AllPlaylists(ctx)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "json":
		if cmd.String("output") == "" {
			return r.writeJSON(playlists, true)
		}
		if data, err = shared.MarshalJSON(playlists, true); err != nil {
			return err
		}
	case "md", "markdown":
		data = formatter.PlaylistsToMarkdown(playlists)
	case "csv":
		if data, err = formatter.PlaylistsToCSV(playlists); err != nil {
			return err
		}
	default:
		data = []byte(formatter.PlaylistsText(playlists))
	}
	return r.writeOutput(cmd.String("output"), data)
}

// PlaylistsPlay starts a playlist on the active device.
func (r *Runner) PlaylistsPlay(ctx context.Context, cmd *cli.Command) error {
	id := strings.TrimSpace(cmd.StringArg("id"))
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	st, err := r.open(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.player.PlayContext(ctx, spotify.PlaylistURI(id)); err != nil {
		return err
	}
	if err := st.player.Poll(ctx); err != nil {
		r.logger.Warn("playlist started but poll failed", "error", err)
		return r.writePlain("✓ Playing playlist %s\n", id)
	}
	return r.writePlain("%s", formatter.NowPlaying(st.player.View()))
}

// History prints plays recorded by the player and the dashboard.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	plays := repositories.NewPlayRepository(db)
	limit := cmd.Int("limit")

	var list []*repositories.Play
	if cmd.Bool("pending") {
		list, err = plays.Unscrobbled(ctx, limit)
	} else {
		list, err = plays.Recent(ctx, limit)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("csv") {
		data, err := formatter.HistoryToCSV(list)
		if err != nil {
			return err
		}
		return r.writeOutput(cmd.String("output"), data)
	}

	total, err := plays.Count(ctx)
	if err != nil {
		return err
	}
	output := cmd.String("output")
	if output == "" {
		r.writePlainHeader(fmt.Sprintf("History (%d of %d plays, * = scrobbled)", len(list), total))
	}
	return r.writeOutput(output, []byte(formatter.HistoryText(list, time.Now())))
}

// writeOutput writes to path, or to the runner's output when path is empty.
func (r *Runner) writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		if _, err := r.output.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := formatter.WriteFile(path, data); err != nil {
		return err
	}
	r.logger.Info("wrote output", "path", path)
	return nil
}
