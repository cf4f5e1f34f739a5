// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultStatusEventsQueue = "letters:status-changed"
	defaultLockKey           = "statussync:reconcile:lock"
)

// ProviderConfig holds the registered-letter provider endpoint and its
// OAuth2 client credentials.
type ProviderConfig struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	Timeout      time.Duration
}

// Config holds all configuration for the status sync service.
type Config struct {
	Provider ProviderConfig

	// Postgres
	DatabaseURL string

	// Redis
	RedisURL            string
	StatusEventsQueue   string
	PublishStatusEvents bool

	// Scheduler
	Interval    time.Duration
	MaxDuration time.Duration
	LockKey     string

	// Server (health, metrics, manual trigger)
	Port     int
	LogLevel slog.Level
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Provider struct {
		BaseURL      string   `yaml:"base_url"`
		TokenURL     string   `yaml:"token_url"`
		ClientID     string   `yaml:"client_id"`
		ClientSecret string   `yaml:"client_secret"`
		Scopes       []string `yaml:"scopes"`
		Timeout      string   `yaml:"timeout"`
	} `yaml:"provider"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			StatusEvents string `yaml:"status_events"`
		} `yaml:"queues"`
		PublishStatusEvents *bool `yaml:"publish_status_events"`
	} `yaml:"redis"`
	Scheduler struct {
		Interval    string `yaml:"interval"`
		MaxDuration string `yaml:"max_duration"`
		LockKey     string `yaml:"lock_key"`
	} `yaml:"scheduler"`
	Port int `yaml:"port"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse builds a Config from YAML bytes. ${VAR} references are expanded
// from the environment first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	timeout, err := parseDuration("provider.timeout", raw.Provider.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration("scheduler.interval", raw.Scheduler.Interval,
		envOrDefaultDuration("RECONCILE_INTERVAL", 5*time.Minute))
	if err != nil {
		return nil, err
	}
	maxDuration, err := parseDuration("scheduler.max_duration", raw.Scheduler.MaxDuration,
		envOrDefaultDuration("RECONCILE_MAX_DURATION", 0))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Provider: ProviderConfig{
			BaseURL:      strings.TrimRight(raw.Provider.BaseURL, "/"),
			TokenURL:     raw.Provider.TokenURL,
			ClientID:     raw.Provider.ClientID,
			ClientSecret: raw.Provider.ClientSecret,
			Scopes:       raw.Provider.Scopes,
			Timeout:      timeout,
		},
		DatabaseURL:         firstNonEmpty(raw.Database.URL, envOrDefault("DATABASE_URL", "postgres://localhost:5432/letters?sslmode=disable")),
		RedisURL:            firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		StatusEventsQueue:   firstNonEmpty(raw.Redis.Queues.StatusEvents, envOrDefault("STATUS_EVENTS_QUEUE", defaultStatusEventsQueue)),
		PublishStatusEvents: raw.Redis.PublishStatusEvents == nil || *raw.Redis.PublishStatusEvents,
		Interval:            interval,
		MaxDuration:         maxDuration,
		LockKey:             firstNonEmpty(raw.Scheduler.LockKey, defaultLockKey),
		Port:                raw.Port,
		LogLevel:            parseLevel(envOrDefault("LOG_LEVEL", "info")),
	}
	if cfg.Port == 0 {
		cfg.Port = envOrDefaultInt("PORT", 8080)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.Provider.BaseURL == "" {
		missing = append(missing, "provider.base_url")
	}
	if c.Provider.TokenURL == "" {
		missing = append(missing, "provider.token_url")
	}
	if c.Provider.ClientID == "" {
		missing = append(missing, "provider.client_id")
	}
	if c.Provider.ClientSecret == "" {
		missing = append(missing, "provider.client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing provider configuration: %s", strings.Join(missing, ", "))
	}

	if c.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Interval)
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = c.Interval * 8 / 10
	}
	if c.MaxDuration < 0 || c.MaxDuration > c.Interval {
		return fmt.Errorf("scheduler.max_duration %s must be between 0 and interval %s", c.MaxDuration, c.Interval)
	}

	return nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", field, err)
	}
	return d, nil
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
