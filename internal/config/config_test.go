package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.APIURL != "http://localhost:4000" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.WSURL != "ws://localhost:4000/ws" {
		t.Errorf("WSURL = %q", cfg.WSURL)
	}
	if cfg.ReconnectAttempts != 5 {
		t.Errorf("ReconnectAttempts = %d, want 5", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v, want 2s", cfg.ReconnectDelay)
	}
	if cfg.TypingWindow != 3*time.Second {
		t.Errorf("TypingWindow = %v, want 3s", cfg.TypingWindow)
	}
	if cfg.SessionFile == "" || cfg.LogFile == "" {
		t.Error("Expected default file paths")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	contents := "api_url: https://crew.example.com\nreconnect_attempts: 9\nreconnect_delay: 500ms\n"
	confDir := filepath.Join(dir, "crewdeck")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.yaml"), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIURL != "https://crew.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.ReconnectAttempts != 9 {
		t.Errorf("ReconnectAttempts = %d, want 9", cfg.ReconnectAttempts)
	}
	if cfg.ReconnectDelay != 500*time.Millisecond {
		t.Errorf("ReconnectDelay = %v, want 500ms", cfg.ReconnectDelay)
	}
	if cfg.WSURL != "ws://localhost:4000/ws" {
		t.Errorf("WSURL = %q, unset keys should keep their defaults", cfg.WSURL)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("CREWDECK_API_URL", "https://env.example.com")

	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.APIURL != "https://env.example.com" {
		t.Errorf("APIURL = %q, want the environment override", cfg.APIURL)
	}
}

func TestMalformedFileFails(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	confDir := filepath.Join(dir, "crewdeck")
	if err := os.MkdirAll(confDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(confDir, "config.yaml"), []byte("api_url: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(viper.New()); err == nil {
		t.Fatal("Expected an error for a malformed config file")
	}
}
