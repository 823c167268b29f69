package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/vibeflow/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup creates config.toml from the template when missing, then initializes the database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.writePlain("✓ Created %s\n", configPath)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)
	db, err := shared.OpenDatabase(ctx, config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.CurrentVersion(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	r.writePlain("✓ Database ready at %s (schema v%d)\n", config.Database.Path, version)

	if err := config.ValidateSpotify(); err != nil {
		r.writePlainln("Next steps:")
		r.writePlain("1. Set credentials.spotify.client_id and client_secret in %s\n", r.configPath)
		r.writePlain("2. Run 'vibeflow auth login'\n")
		return nil
	}

	r.writePlainln("Next: run 'vibeflow auth login'")
	return nil
}
