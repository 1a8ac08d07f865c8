package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type AppConfig struct {
	// LinkWSURL is the companion bridge endpoint. When set, remote games go
	// through the proxied link.
	LinkWSURL string `yaml:"link_ws_url"`
	// HTTPBaseURL reaches the game server directly, for hosts with their
	// own network. At least one of the two endpoints must be set for remote
	// play; with neither, only local games work.
	HTTPBaseURL string `yaml:"http_base_url"`
	APIToken    string `yaml:"api_token"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	PollInterval      time.Duration `yaml:"poll_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
}

// Load reads an optional yaml file named by E_CHESS_CONFIG, then lets
// E_CHESS_* environment variables override it.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		PollInterval:      100 * time.Millisecond,
		RequestTimeout:    10 * time.Second,
		ReconnectAttempts: 10,
		ReconnectDelay:    2 * time.Second,
	}

	if path := strings.TrimSpace(os.Getenv("E_CHESS_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := strings.TrimSpace(os.Getenv("E_CHESS_LINK_WS_URL")); v != "" {
		cfg.LinkWSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_HTTP_BASE_URL")); v != "" {
		cfg.HTTPBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_API_TOKEN")); v != "" {
		cfg.APIToken = v
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_POLL_INTERVAL_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollInterval = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_REQUEST_TIMEOUT")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RequestTimeout = d
		}
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_RECONNECT_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ReconnectAttempts = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("E_CHESS_RECONNECT_DELAY")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.ReconnectDelay = d
		}
	}

	if cfg.PollInterval <= 0 {
		return nil, errors.New("poll interval must be positive")
	}
	return cfg, nil
}
