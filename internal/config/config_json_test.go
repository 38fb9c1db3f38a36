package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return configPath
}

func TestNewConfigWithJSON(t *testing.T) {
	configPath := writeConfig(t, `{
		"server_address": "json:8080",
		"base_url": "http://json",
		"sharing": {"allow_links": false, "share_folder": "/Shared"},
		"propagation": {"batch_timeout": "250ms"}
	}`)
	resetFlags(t, "-c", configPath)

	cfg := NewConfig()

	if cfg.ServerAddress != "json:8080" {
		t.Errorf("NewConfig() ServerAddress = %v, want %v", cfg.ServerAddress, "json:8080")
	}

	if cfg.BaseURL != "http://json" {
		t.Errorf("NewConfig() BaseURL = %v, want %v", cfg.BaseURL, "http://json")
	}

	if cfg.Sharing.AllowLinks {
		t.Errorf("NewConfig() AllowLinks = true, want false")
	}

	if !cfg.Sharing.Enabled {
		t.Errorf("NewConfig() Enabled = false, want default true")
	}

	if cfg.Sharing.ShareFolder != "/Shared" {
		t.Errorf("NewConfig() ShareFolder = %v, want /Shared", cfg.Sharing.ShareFolder)
	}

	if cfg.Propagation.BatchTimeout.Duration != 250*time.Millisecond {
		t.Errorf("NewConfig() BatchTimeout = %v, want 250ms", cfg.Propagation.BatchTimeout)
	}
}

func TestNewConfigJSONPriority(t *testing.T) {
	// JSON says "json:8080", the flag says "flag:8080", env says "env:8080".
	configPath := writeConfig(t, `{"server_address": "json:8080", "base_url": "http://json"}`)
	resetFlags(t, "-c", configPath, "-a", "flag:8080", "-b", "http://flag")
	t.Setenv("SERVER_ADDRESS", "env:8080")

	cfg := NewConfig()

	if cfg.ServerAddress != "env:8080" {
		t.Errorf("NewConfig() ServerAddress = %v, want %v", cfg.ServerAddress, "env:8080")
	}

	if cfg.BaseURL != "http://flag" {
		t.Errorf("NewConfig() BaseURL = %v, want %v", cfg.BaseURL, "http://flag")
	}
}

func TestNewConfigJSONFromEnv(t *testing.T) {
	configPath := writeConfig(t, `{"log_level": "debug"}`)
	resetFlags(t)
	t.Setenv("CONFIG", configPath)

	cfg := NewConfig()

	if cfg.LogLevel != "debug" {
		t.Errorf("NewConfig() LogLevel = %v, want debug", cfg.LogLevel)
	}
	if cfg.ConfigPath != configPath {
		t.Errorf("NewConfig() ConfigPath = %v, want %v", cfg.ConfigPath, configPath)
	}
}

func TestNewConfigBrokenJSONKeepsDefaults(t *testing.T) {
	configPath := writeConfig(t, `{"server_address": `)
	resetFlags(t, "-c", configPath)

	cfg := NewConfig()

	if cfg.ServerAddress != ":8080" {
		t.Errorf("NewConfig() ServerAddress = %v, want %v", cfg.ServerAddress, ":8080")
	}
}
