package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config carries everything the stats engine needs at boot. Values come
// from an optional YAML file (STATS_CONFIG_FILE) overridden by environment
// variables; a .env file is honored when present.
type Config struct {
	LichessBaseURL string `yaml:"lichess_base_url"`
	LichessToken   string `yaml:"lichess_token"`
	UserAgent      string `yaml:"user_agent"`

	HTTPAddr    string `yaml:"http_addr"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	UpstreamTimeoutSec int `yaml:"upstream_timeout_sec"`
	DefaultWindowDays  int `yaml:"default_window_days"`
	MaxWindowDays      int `yaml:"max_window_days"`
	OpeningsFetchLimit int `yaml:"openings_fetch_limit"`
	PGNExportLimit     int `yaml:"pgn_export_limit"`
	ChartCacheTTLSec   int `yaml:"chart_cache_ttl_sec"`

	// Seed usernames for random-game selection. Injected configuration so
	// tests and deployments can replace the list without code changes.
	TopBlitzSeeds []string `yaml:"top_blitz_seeds"`
}

// defaultTopBlitzSeeds is the shipped seed list; overridable via config
// file or TOP_BLITZ_SEEDS.
var defaultTopBlitzSeeds = []string{
	"penguingim1",
	"Craze",
	"HomayooonT",
	"Infinity-Stones",
	"Ratkovic_Miloje",
	"ABachmann",
	"AnishGiri",
	"dalmatinac101",
	"RealDavidNavara",
	"Dr-CRO",
	"gmmoranda",
	"FakeBruceLee",
	"S2Pac",
	"Vladimirovich9000",
	"venajalainen",
	"Chewbacca18",
	"Sigma_Tauri",
	"DrawDenied_Twitch",
	"Andrey11976",
	"Bestinblitz",
}

func Load() (*Config, error) {
	// ignore the error so the app still starts when .env is absent
	_ = godotenv.Load()

	cfg := &Config{
		LichessBaseURL:     "https://lichess.org",
		UserAgent:          "lichess-stats-bot",
		HTTPAddr:           ":8080",
		UpstreamTimeoutSec: 15,
		DefaultWindowDays:  30,
		MaxWindowDays:      365,
		OpeningsFetchLimit: 100,
		PGNExportLimit:     50,
		ChartCacheTTLSec:   3600,
		TopBlitzSeeds:      defaultTopBlitzSeeds,
	}

	if path := strings.TrimSpace(os.Getenv("STATS_CONFIG_FILE")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	setString(&cfg.LichessBaseURL, "LICHESS_BASE_URL")
	setString(&cfg.LichessToken, "LICHESS_TOKEN")
	setString(&cfg.UserAgent, "STATS_USER_AGENT")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisURL, "REDIS_URL")

	for key, dst := range map[string]*int{
		"UPSTREAM_TIMEOUT_SEC": &cfg.UpstreamTimeoutSec,
		"DEFAULT_WINDOW_DAYS":  &cfg.DefaultWindowDays,
		"MAX_WINDOW_DAYS":      &cfg.MaxWindowDays,
		"OPENINGS_FETCH_LIMIT": &cfg.OpeningsFetchLimit,
		"PGN_EXPORT_LIMIT":     &cfg.PGNExportLimit,
		"CHART_CACHE_TTL_SEC":  &cfg.ChartCacheTTLSec,
	} {
		if err := setInt(dst, key); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("TOP_BLITZ_SEEDS")); v != "" {
		cfg.TopBlitzSeeds = splitList(v)
	}

	if cfg.LichessBaseURL == "" {
		return nil, fmt.Errorf("LICHESS_BASE_URL must not be empty")
	}
	if cfg.DefaultWindowDays <= 0 || cfg.MaxWindowDays <= 0 {
		return nil, fmt.Errorf("window day settings must be positive")
	}
	if cfg.DefaultWindowDays > cfg.MaxWindowDays {
		return nil, fmt.Errorf("DEFAULT_WINDOW_DAYS exceeds MAX_WINDOW_DAYS")
	}

	return cfg, nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
