package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Fatalf("ListenAddr default = %q", cfg.ListenAddr)
	}
	if cfg.MatchInterval != time.Second || cfg.PollTimeout != 5*time.Second {
		t.Fatalf("timing defaults wrong: %v / %v", cfg.MatchInterval, cfg.PollTimeout)
	}
	if cfg.MaxEloDiff != 200 || cfg.EloTightenAfter != 5*time.Minute {
		t.Fatalf("matchmaking defaults wrong: %d / %v", cfg.MaxEloDiff, cfg.EloTightenAfter)
	}
}

func TestLoadRequiresRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error when REDIS_URL is unset")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "listen_addr: \":9000\"\nredis_url: \"redis://file:6379/0\"\npoll_timeout: \"2s\"\nmax_elo_diff: 150\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("REDIS_URL", "redis://env:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisURL != "redis://env:6379/1" {
		t.Fatalf("env should win over file, got %q", cfg.RedisURL)
	}
	if cfg.ListenAddr != ":9000" || cfg.PollTimeout != 2*time.Second || cfg.MaxEloDiff != 150 {
		t.Fatalf("file values not applied: %q %v %d", cfg.ListenAddr, cfg.PollTimeout, cfg.MaxEloDiff)
	}
}

func TestBadDurationRejected(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("POLL_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unparsable POLL_TIMEOUT")
	}
}
