// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials use the targeted Validate helpers.
package config

import (
	"fmt"
	"os"
)

type Config struct {
	// Twitch application credentials
	TwitchClientID     string
	TwitchClientSecret string
	TwitchRedirectURI  string

	// Channel the bot runs against. The channel ID is resolved at startup
	// from the user token.
	TwitchChannel string

	// Optional pre-seeded user token pair; normally tokens come from the
	// database or the interactive OAuth flow.
	TwitchAccessToken  string
	TwitchRefreshToken string

	// Websocket endpoint overrides, used by tests and local relays.
	PubsubURL string
	IRCURL    string

	// Database; empty disables persistence (token store, chat log).
	DBDsn string

	// HTTP listen address: OAuth callback, /healthz, /status, /metrics.
	HTTPAddr string

	// Operator settings file (YAML).
	SettingsPath string

	// Directory of .wav clips for the play-sound rewards.
	SoundsDir string
}

// Load reads environment variables and applies defaults. Missing Twitch
// credentials don't fail here; use ValidateOAuthReady when the OAuth flow is
// required. An empty DB_DSN disables persistence rather than erroring.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = os.Getenv("TWITCH_CLIENT_SECRET")
	cfg.TwitchRedirectURI = os.Getenv("TWITCH_REDIRECT_URI")
	if cfg.TwitchRedirectURI == "" {
		cfg.TwitchRedirectURI = "http://localhost:8558/oauth/callback"
	}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")
	cfg.TwitchAccessToken = os.Getenv("TWITCH_ACCESS_TOKEN")
	cfg.TwitchRefreshToken = os.Getenv("TWITCH_REFRESH_TOKEN")

	cfg.PubsubURL = os.Getenv("TWITCH_PUBSUB_URL")
	cfg.IRCURL = os.Getenv("TWITCH_IRC_URL")

	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8558"
	}

	cfg.SettingsPath = os.Getenv("SETTINGS_PATH")
	if cfg.SettingsPath == "" {
		cfg.SettingsPath = "settings.yml"
	}

	cfg.SoundsDir = os.Getenv("SOUNDS_DIR")
	if cfg.SoundsDir == "" {
		cfg.SoundsDir = "sounds"
	}

	return cfg, nil
}

// ValidateOAuthReady checks the fields the authorization-code flow needs.
func (c *Config) ValidateOAuthReady() error {
	if c.TwitchClientID == "" || c.TwitchClientSecret == "" {
		return fmt.Errorf("missing twitch env: require TWITCH_CLIENT_ID, TWITCH_CLIENT_SECRET")
	}
	return nil
}
