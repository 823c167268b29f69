package main

import (
	"context"
	"net/url"

	"github.com/desertthunder/vibeflow/internal/server"
	"github.com/urfave/cli/v3"
)

const defaultCallbackPath = "/auth/callback"

// Serve runs the dashboard API with a live reconciler until interrupted.
//
// Signing in is optional at startup: the dashboard's own login route completes the flow.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	st, err := r.open(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer st.Close()

	callbackPath := defaultCallbackPath
	if u, err := url.Parse(st.oauth.RedirectURL); err == nil && u.Path != "" {
		callbackPath = u.Path
	}

	router := server.NewRouter(r.logger)
	server.NewAuthHandler(st.oauth, st.sessions, st.player, callbackPath, r.logger).Register(router)
	server.NewDashboardHandler(st.player, st.insights, st.client, r.logger).Register(router)

	r.background(ctx, st)
	if err := st.player.Start(ctx); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = st.config.Server.Addr()
	}

	r.writePlain("%s\n", server.Banner("vibeflow"))
	if !st.sessions.Authenticated() {
		r.writePlain("Not signed in. Open http://%s%s to connect Spotify.\n\n", addr, server.LoginPath)
	}
	return server.New(addr, router, r.logger).Run(ctx)
}
