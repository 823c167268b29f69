package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./vibeflow.db" {
			t.Errorf("expected database path ./vibeflow.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Playback.PollInterval.Duration != 5*time.Second {
			t.Errorf("expected poll interval 5s, got %s", config.Playback.PollInterval)
		}

		if config.Playback.SkipRefreshDelay.Duration != 500*time.Millisecond {
			t.Errorf("expected skip refresh delay 500ms, got %s", config.Playback.SkipRefreshDelay)
		}

		if config.Credentials.Spotify.ClientID != "your_spotify_client_id" {
			t.Errorf("expected spotify client_id your_spotify_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Credentials.LastFM.Enabled() {
			t.Error("expected last.fm to be disabled by default")
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"

[server]
host = "0.0.0.0"
port = 8080

[playback]
poll_interval = "2s"

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/auth/callback"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Addr() != "0.0.0.0:8080" {
			t.Errorf("expected server addr 0.0.0.0:8080, got %s", config.Server.Addr())
		}

		if config.Playback.PollInterval.Duration != 2*time.Second {
			t.Errorf("expected poll interval 2s, got %s", config.Playback.PollInterval)
		}

		if config.Playback.TickInterval.Duration != time.Second {
			t.Errorf("expected default tick interval to survive, got %s", config.Playback.TickInterval)
		}

		if err := config.ValidateSpotify(); err != nil {
			t.Errorf("expected valid spotify credentials, got %v", err)
		}
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[playback]\npoll_interval = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error for invalid duration")
		}
	})

	t.Run("ValidateSpotify", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ValidateSpotify()

		var cfgErr *ConfigError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if cfgErr.Field != "credentials.spotify.client_id" {
			t.Errorf("unexpected field %s", cfgErr.Field)
		}
	})

	t.Run("SaveConfig round trips", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		config := DefaultConfig()
		config.Credentials.LastFM = LastFMConfig{APIKey: "k", APISecret: "s", SessionKey: "sk", Username: "listener"}

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load saved config: %v", err)
		}
		if !loaded.Credentials.LastFM.Enabled() {
			t.Error("expected last.fm credentials to persist")
		}
		if loaded.Playback.SkipRefreshDelay != config.Playback.SkipRefreshDelay {
			t.Errorf("expected %s, got %s", config.Playback.SkipRefreshDelay, loaded.Playback.SkipRefreshDelay)
		}
	})
}
