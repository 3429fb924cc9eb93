// Package config loads the tool configuration from disk and the
// environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds the enrichment settings. Environment variables override the
// file so the tool drops into containers without a config volume.
type Config struct {
	// TMDB Integration settings
	TMDBAPIKey   string `json:"tmdb_api_key"`
	OMDBAPIKey   string `json:"omdb_api_key"`
	TMDBLanguage string `json:"tmdb_language"`

	WorkerCount  int `json:"worker_count"`
	MaxAttempts  int `json:"max_attempts"`
	CacheTTLDays int `json:"cache_ttl_days"`

	// Redis cache backend; empty host selects the local file-backed cache.
	RedisHost     string `json:"redis_host"`
	RedisPort     int    `json:"redis_port"`
	RedisPassword string `json:"redis_password"`

	// ArtworkDir receives downloaded posters.
	ArtworkDir string `json:"artwork_dir"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		TMDBLanguage: "en-US",
		WorkerCount:  10,
		MaxAttempts:  4,
		CacheTTLDays: 90,
		RedisPort:    6379,
		ArtworkDir:   "artwork",
	}
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".xmltv-enrich", "config.json"), nil
}

// CacheFilePath returns the snapshot location for the file-backed cache.
func CacheFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".xmltv-enrich", "cache.gob"), nil
}

// Load reads the configuration from disk, fills missing fields with
// defaults, and applies environment overrides.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Fill in any missing fields with defaults
	defaults := DefaultConfig()
	if cfg.TMDBLanguage == "" {
		cfg.TMDBLanguage = defaults.TMDBLanguage
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = defaults.WorkerCount
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.CacheTTLDays <= 0 {
		cfg.CacheTTLDays = defaults.CacheTTLDays
	}
	if cfg.RedisPort <= 0 {
		cfg.RedisPort = defaults.RedisPort
	}
	if cfg.ArtworkDir == "" {
		cfg.ArtworkDir = defaults.ArtworkDir
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the configuration to disk, creating the directory if needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TMDB_API"); v != "" {
		c.TMDBAPIKey = v
	}
	if v := os.Getenv("OMDB_API"); v != "" {
		c.OMDBAPIKey = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.RedisPort = port
		}
	}
	if v := os.Getenv("REDIS_PASS"); v != "" {
		c.RedisPassword = v
	}
}
