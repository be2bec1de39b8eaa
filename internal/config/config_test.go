package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Dune.PollInterval.Duration != 2*time.Second {
		t.Errorf("expected poll interval 2s, got %v", cfg.Dune.PollInterval)
	}
	if cfg.Dune.ParamName != "eth_address" {
		t.Errorf("expected param name 'eth_address', got %q", cfg.Dune.ParamName)
	}
	if cfg.Graph.HubMode != "append" {
		t.Errorf("expected hub mode 'append', got %q", cfg.Graph.HubMode)
	}
	if cfg.Layout.LinkDistance != 150 {
		t.Errorf("expected link distance 150, got %v", cfg.Layout.LinkDistance)
	}
	if cfg.Layout.Charge != -800 {
		t.Errorf("expected charge -800, got %v", cfg.Layout.Charge)
	}
	if cfg.View.MinZoom != 0.5 || cfg.View.MaxZoom != 5 {
		t.Errorf("expected zoom range [0.5, 5], got [%v, %v]", cfg.View.MinZoom, cfg.View.MaxZoom)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/test-xdg")
	dir := ConfigDir()
	if dir != "/tmp/test-xdg/ripple" {
		t.Errorf("expected /tmp/test-xdg/ripple, got %q", dir)
	}

	t.Setenv("XDG_CONFIG_HOME", "")
	dir = ConfigDir()
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config", "ripple")
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dune.QueryID != Default().Dune.QueryID {
		t.Errorf("expected default query id, got %q", cfg.Dune.QueryID)
	}
}

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	cfg := Default()
	cfg.Dune.PollInterval = Duration{500 * time.Millisecond}
	cfg.Dune.MaxPolls = 10
	cfg.Graph.HubMode = "dedup"

	if err := Save(cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Dune.PollInterval.Duration != 500*time.Millisecond {
		t.Errorf("expected poll interval 500ms, got %v", loaded.Dune.PollInterval)
	}
	if loaded.Dune.MaxPolls != 10 {
		t.Errorf("expected max polls 10, got %d", loaded.Dune.MaxPolls)
	}
	if loaded.Graph.HubMode != "dedup" {
		t.Errorf("expected hub mode 'dedup', got %q", loaded.Graph.HubMode)
	}
}

func TestLoadPartialFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	path := filepath.Join(tmpDir, "ripple", "config.toml")
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("[dune]\npoll_interval = \"250ms\"\n\n[layout]\ncharge = -300\n"), 0o644)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Dune.PollInterval.Duration != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", cfg.Dune.PollInterval)
	}
	if cfg.Layout.Charge != -300 {
		t.Errorf("expected charge -300, got %v", cfg.Layout.Charge)
	}
	// Untouched keys keep their defaults.
	if cfg.Layout.LinkDistance != 150 {
		t.Errorf("expected default link distance, got %v", cfg.Layout.LinkDistance)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad hub mode", "[graph]\nhub_mode = \"merge\"\n"},
		{"positive charge", "[layout]\ncharge = 10\n"},
		{"inverted zoom", "[view]\nmin_zoom = 4.0\nmax_zoom = 2.0\n"},
		{"zero poll interval", "[dune]\npoll_interval = \"0s\"\n"},
		{"bad duration", "[dune]\npoll_interval = \"soon\"\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Setenv("XDG_CONFIG_HOME", tmpDir)
			path := filepath.Join(tmpDir, "ripple", "config.toml")
			os.MkdirAll(filepath.Dir(path), 0o755)
			os.WriteFile(path, []byte(tt.body), 0o644)

			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestEnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	path := filepath.Join(tmpDir, "ripple", "config.toml")
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}

	// Second call should be no-op
	if err := EnsureExists(); err != nil {
		t.Fatalf("EnsureExists second call failed: %v", err)
	}
}

func TestAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Dune.APIKeyEnv = "RIPPLE_TEST_KEY"

	t.Setenv("RIPPLE_TEST_KEY", "")
	if got := cfg.APIKey(); got != "" {
		t.Errorf("expected empty key, got %q", got)
	}

	t.Setenv("RIPPLE_TEST_KEY", "secret")
	if got := cfg.APIKey(); got != "secret" {
		t.Errorf("expected 'secret', got %q", got)
	}

	cfg.Dune.APIKeyEnv = ""
	if got := cfg.APIKey(); got != "" {
		t.Errorf("expected empty key with no env name, got %q", got)
	}
}

func TestAllowedQueries(t *testing.T) {
	cfg := Default()
	if got := cfg.AllowedQueries(); len(got) != 1 || got[0] != cfg.Dune.QueryID {
		t.Errorf("expected [%s], got %v", cfg.Dune.QueryID, got)
	}

	cfg.Relay.Queries = []string{"1", "2"}
	if got := cfg.AllowedQueries(); len(got) != 2 {
		t.Errorf("expected 2 queries, got %v", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)

	const name = "RIPPLE_DOTENV_TEST_KEY"
	os.Unsetenv(name)
	t.Cleanup(func() { os.Unsetenv(name) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(name+"=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Dune.APIKeyEnv = name
	if got := cfg.APIKey(); got != "from-dotenv" {
		t.Errorf("expected key from .env, got %q", got)
	}
}
