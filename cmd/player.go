package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/vibeflow/internal/formatter"
	"github.com/desertthunder/vibeflow/internal/playback"
	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/desertthunder/vibeflow/internal/ui"
	"github.com/urfave/cli/v3"
)

// Player launches the terminal now-playing screen.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, closer, err := shared.NewFileLogger(config.Log.File)
	if err != nil {
		return err
	}
	defer closer.Close()
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(config.Log.Level))
	r.SetLogger(fileLogger)

	st, err := r.open(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	model := ui.NewModel(ctx, st.player, st.insights, st.client)
	r.background(ctx, st)
	if err := st.player.Start(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Now polls once and prints the current track.
func (r *Runner) Now(ctx context.Context, cmd *cli.Command) error {
	st, err := r.open(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.player.Poll(ctx); err != nil {
		return err
	}
	return r.printView(cmd, st.player.View())
}

// CtlToggle pauses when playing and resumes otherwise.
func (r *Runner) CtlToggle(ctx context.Context, cmd *cli.Command) error {
	return r.control(ctx, cmd, func(ctx context.Context, p *playback.Reconciler) error {
		return p.Toggle(ctx)
	})
}

// CtlNext skips forward and shows the track once the remote has moved.
func (r *Runner) CtlNext(ctx context.Context, cmd *cli.Command) error {
	return r.skip(ctx, cmd, playback.Next)
}

// CtlPrevious skips back and shows the track once the remote has moved.
func (r *Runner) CtlPrevious(ctx context.Context, cmd *cli.Command) error {
	return r.skip(ctx, cmd, playback.Previous)
}

func (r *Runner) skip(ctx context.Context, cmd *cli.Command, dir playback.Direction) error {
	return r.control(ctx, cmd, func(ctx context.Context, p *playback.Reconciler) error {
		if err := p.Skip(ctx, dir); err != nil {
			return err
		}
		// The remote needs a moment before it reports the new track.
		select {
		case <-time.After(r.config.Playback.SkipRefreshDelay.Duration):
		case <-ctx.Done():
			return ctx.Err()
		}
		return p.Poll(ctx)
	})
}

// CtlSeek moves to an absolute position given as seconds or m:ss.
func (r *Runner) CtlSeek(ctx context.Context, cmd *cli.Command) error {
	positionMS, err := parsePosition(cmd.StringArg("position"))
	if err != nil {
		return err
	}
	return r.control(ctx, cmd, func(ctx context.Context, p *playback.Reconciler) error {
		p.BeginSeek()
		return p.CommitSeek(ctx, positionMS)
	})
}

// CtlVolume sets the device volume.
func (r *Runner) CtlVolume(ctx context.Context, cmd *cli.Command) error {
	arg := cmd.StringArg("percent")
	percent, err := strconv.Atoi(strings.TrimSuffix(arg, "%"))
	if err != nil {
		return fmt.Errorf("%w: volume %q is not a number", shared.ErrInvalidArgument, arg)
	}
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: volume must be between 0 and 100", shared.ErrInvalidArgument)
	}
	return r.control(ctx, cmd, func(ctx context.Context, p *playback.Reconciler) error {
		return p.SetVolume(ctx, percent)
	})
}

// control syncs the reconciler, runs fn and prints the resulting view.
func (r *Runner) control(ctx context.Context, cmd *cli.Command, fn func(context.Context, *playback.Reconciler) error) error {
	st, err := r.open(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.player.Poll(ctx); err != nil {
		return err
	}
	if err := fn(ctx, st.player); err != nil {
		return err
	}
	return r.printView(cmd, st.player.View())
}

func (r *Runner) printView(cmd *cli.Command, v playback.View) error {
	if cmd.Bool("json") {
		return r.writeJSON(v, cmd.Bool("pretty"))
	}
	return r.writePlain("%s", formatter.NowPlaying(v))
}

// parsePosition reads "95", "1:35" or "1:02:03" as milliseconds.
func parsePosition(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: position", shared.ErrMissingArgument)
	}

	seconds := 0
	for part := range strings.SplitSeq(s, ":") {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: position %q", shared.ErrInvalidArgument, s)
		}
		seconds = seconds*60 + n
	}
	return seconds * 1000, nil
}
