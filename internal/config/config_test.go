package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Game.DataDir != nil || cfg.Store.Backend != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
[game]
data-dir = "/srv/packs"
shuffle = true
pass-accuracy = 70

[store]
backend = "redis"
redis-addr = "localhost:6380"
redis-db = 2

[log]
level = "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if StringOr(cfg.Game.DataDir, "") != "/srv/packs" || !*cfg.Game.Shuffle || IntOr(cfg.Game.PassAccuracy, 0) != 70 {
		t.Fatalf("unexpected game section: %+v", cfg.Game)
	}
	if StringOr(cfg.Store.Backend, "") != BackendRedis || IntOr(cfg.Store.RedisDB, 0) != 2 {
		t.Fatalf("unexpected store section: %+v", cfg.Store)
	}
	if StringOr(cfg.Store.Path, "fallback") != "fallback" {
		t.Fatalf("expected unset path to fall back")
	}
	if StringOr(cfg.Log.Level, "") != "debug" {
		t.Fatalf("unexpected log level")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"backend", "[store]\nbackend = \"postgres\"\n", "store.backend"},
		{"accuracy", "[game]\npass-accuracy = 120\n", "pass-accuracy"},
		{"unknown key", "[game]\nlang = \"en\"\n", "unknown config key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "factopia", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "factopia", "factopia.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/state", "factopia", "factopia.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}
