// Package config loads tunnelauth settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvClientID      = "TUNNELAUTH_GOOGLE_CLIENT_ID"
	EnvClientSecret  = "TUNNELAUTH_GOOGLE_CLIENT_SECRET"
	EnvTokenPath     = "TUNNELAUTH_TOKEN_PATH"
	EnvHTTPCachePath = "TUNNELAUTH_HTTP_CACHE_PATH"
)

type Config struct {
	GoogleClientID     string
	GoogleClientSecret string
	// TokenPath is where the acquired token is persisted.
	TokenPath string
	// HTTPCachePath is the auth library's on-disk HTTP response cache.
	HTTPCachePath string
}

// loadDotenv pulls in a .env file if present. Overridden in tests.
var loadDotenv = func() { _ = godotenv.Load() }

// userHomeDir resolves the home directory. Overridden in tests.
var userHomeDir = os.UserHomeDir

func Load() (*Config, error) {
	loadDotenv()
	cfg := &Config{
		GoogleClientID:     os.Getenv(EnvClientID),
		GoogleClientSecret: os.Getenv(EnvClientSecret),
		TokenPath:          envOr(EnvTokenPath, defaultPath("token.json")),
		HTTPCachePath:      envOr(EnvHTTPCachePath, defaultPath("http_cache.bin")),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// defaultPath places name under the tunnelauth config directory:
// $XDG_CONFIG_HOME/tunnelauth, else ~/.config/tunnelauth, else the working
// directory.
func defaultPath(name string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tunnelauth", name)
	}
	home, err := userHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "tunnelauth", name)
}
