package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig holds everything the server binary needs. Values come from an
// optional YAML file (CONFIG_FILE) overridden by environment variables, so a
// deployment can pin defaults in a file and still tweak per-instance via env.
type AppConfig struct {
	ListenAddr  string
	RedisURL    string
	DatabaseURL string

	// matchmaking knobs; the defaults mirror the production rules
	MatchInterval   time.Duration
	PollTimeout     time.Duration
	MaxEloDiff      int
	EloTightenAfter time.Duration
}

// fileConfig is the YAML shape. Durations are strings ("1s", "5m") so the
// file reads the same as the env vars.
type fileConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	RedisURL        string `yaml:"redis_url"`
	DatabaseURL     string `yaml:"database_url"`
	MatchInterval   string `yaml:"match_interval"`
	PollTimeout     string `yaml:"poll_timeout"`
	MaxEloDiff      int    `yaml:"max_elo_diff"`
	EloTightenAfter string `yaml:"elo_tighten_after"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:      ":3000",
		MatchInterval:   time.Second,
		PollTimeout:     5 * time.Second,
		MaxEloDiff:      200,
		EloTightenAfter: 5 * time.Minute,
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("MATCH_INTERVAL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid MATCH_INTERVAL %q", v)
		}
		cfg.MatchInterval = d
	}
	if v := strings.TrimSpace(os.Getenv("POLL_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid POLL_TIMEOUT %q", v)
		}
		cfg.PollTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("MAX_ELO_DIFF")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxEloDiff = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ELO_TIGHTEN_AFTER")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ELO_TIGHTEN_AFTER %q", v)
		}
		cfg.EloTightenAfter = d
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.RedisURL != "" {
		cfg.RedisURL = fc.RedisURL
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.MaxEloDiff > 0 {
		cfg.MaxEloDiff = fc.MaxEloDiff
	}
	for _, f := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.MatchInterval, &cfg.MatchInterval, "match_interval"},
		{fc.PollTimeout, &cfg.PollTimeout, "poll_timeout"},
		{fc.EloTightenAfter, &cfg.EloTightenAfter, "elo_tighten_after"},
	} {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid %s %q in config file", f.key, f.raw)
		}
		*f.dst = d
	}
	return nil
}
