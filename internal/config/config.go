// Package config loads crewdeck client configuration from the config file
// and environment, with workable defaults for everything.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "yaml"
	configDir  = "crewdeck"
	envPrefix  = "CREWDECK"
)

// Config is the resolved client configuration.
type Config struct {
	// APIURL is the REST backend root.
	APIURL string

	// WSURL is the push channel endpoint.
	WSURL string

	// SessionFile is where the login credential is persisted.
	SessionFile string

	// LogFile receives the rotating debug log.
	LogFile string

	// ReconnectAttempts bounds the push channel's retry budget.
	ReconnectAttempts int

	// ReconnectDelay is the fixed wait between reconnect attempts.
	ReconnectDelay time.Duration

	// TypingWindow is how long a typing flag stays set without renewal.
	TypingWindow time.Duration
}

// Load resolves configuration from, in order of precedence: environment
// variables (CREWDECK_*), the config file, and built-in defaults. A missing
// config file is fine; a malformed one is not.
func Load(cfg *viper.Viper) (*Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	dir, err := defaultConfigDir()
	if err != nil {
		return nil, err
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(dir)

	cfg.SetDefault("api_url", "http://localhost:4000")
	cfg.SetDefault("ws_url", "ws://localhost:4000/ws")
	cfg.SetDefault("session_file", filepath.Join(dir, "session.json"))
	cfg.SetDefault("log_file", filepath.Join(dir, "crewdeck.log"))
	cfg.SetDefault("reconnect_attempts", 5)
	cfg.SetDefault("reconnect_delay", 2*time.Second)
	cfg.SetDefault("typing_window", 3*time.Second)

	cfg.SetEnvPrefix(envPrefix)
	cfg.AutomaticEnv()

	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{
		APIURL:            cfg.GetString("api_url"),
		WSURL:             cfg.GetString("ws_url"),
		SessionFile:       cfg.GetString("session_file"),
		LogFile:           cfg.GetString("log_file"),
		ReconnectAttempts: cfg.GetInt("reconnect_attempts"),
		ReconnectDelay:    cfg.GetDuration("reconnect_delay"),
		TypingWindow:      cfg.GetDuration("typing_window"),
	}, nil
}

// defaultConfigDir returns the per-user config directory, honoring
// XDG_CONFIG_HOME.
func defaultConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", configDir), nil
}
