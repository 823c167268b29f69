// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
	}
}

func jsonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print JSON output",
			Value: true,
		},
	}
}

// setupCommand creates the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and initialize the database",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// authCommand handles Spotify sign-in
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Spotify session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in to Spotify in the browser",
				Flags: []cli.Flag{
					configFlag(),
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: authTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "logout",
				Usage:  "Forget the saved Spotify session",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Show whether a Spotify session is saved",
				Flags:  []cli.Flag{configFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// playerCommand launches the terminal player.
func playerCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "player",
		Aliases: []string{"tui", "ui"},
		Usage:   "Launch the interactive now-playing screen",
		Flags:   []cli.Flag{configFlag()},
		Action:  r.Player,
	}
}

func nowCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "now",
		Usage:  "Show the currently playing track",
		Flags:  append([]cli.Flag{configFlag()}, jsonFlags()...),
		Action: r.Now,
	}
}

// ctlCommand sends one playback command and prints the result.
func ctlCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ctl",
		Usage: "Control playback",
		Commands: []*cli.Command{
			{
				Name:    "toggle",
				Aliases: []string{"play", "pause"},
				Usage:   "Toggle play/pause",
				Flags:   []cli.Flag{configFlag()},
				Action:  r.CtlToggle,
			},
			{
				Name:   "next",
				Usage:  "Skip to the next track",
				Flags:  []cli.Flag{configFlag()},
				Action: r.CtlNext,
			},
			{
				Name:    "prev",
				Aliases: []string{"previous"},
				Usage:   "Skip to the previous track",
				Flags:   []cli.Flag{configFlag()},
				Action:  r.CtlPrevious,
			},
			{
				Name:  "seek",
				Usage: "Seek to a position, as seconds or m:ss",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "position"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.CtlSeek,
			},
			{
				Name:  "volume",
				Usage: "Set the volume (0-100)",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "percent"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.CtlVolume,
			},
		},
	}
}

func profileCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "profile",
		Usage:  "Show top artists, top tracks and listening stats",
		Flags:  append([]cli.Flag{configFlag()}, jsonFlags()...),
		Action: r.Profile,
	}
}

// playlistsCommand lists and starts playlists
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlists",
		Aliases: []string{"pl"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List your playlists",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, md or csv",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path (stdout when empty)",
					},
				},
				Action: r.PlaylistsList,
			},
			{
				Name:  "play",
				Usage: "Start playing a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags:  []cli.Flag{configFlag()},
				Action: r.PlaylistsPlay,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recorded plays",
		Flags: []cli.Flag{
			configFlag(),
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of plays to show",
				Value:   20,
			},
			&cli.BoolFlag{
				Name:  "pending",
				Usage: "Only show plays not yet scrobbled",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Output CSV",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (stdout when empty)",
			},
		},
		Action: r.History,
	}
}

// serveCommand runs the dashboard backend.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the dashboard HTTP API",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}

// lastfmCommand links a Last.fm account for scrobbling
func lastfmCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lastfm",
		Usage: "Last.fm scrobbling",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Link a Last.fm account and save the session key",
				Flags:  []cli.Flag{configFlag()},
				Action: r.LastFMAuth,
			},
		},
	}
}
