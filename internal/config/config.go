// Package config loads the service configuration from YAML with sane
// defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Intel   IntelConfig   `yaml:"intel"`
	Scoring ScoringConfig `yaml:"scoring"`
	History HistoryConfig `yaml:"history"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Enabled false falls back to the in-memory store.
	Enabled bool `yaml:"enabled"`
}

type IntelConfig struct {
	FeedURL       string   `yaml:"feed_url"`
	APIKey        string   `yaml:"api_key"`
	CacheTTL      Duration `yaml:"cache_ttl"`
	MaxLookups    int      `yaml:"max_lookups"`
	LookupTimeout Duration `yaml:"lookup_timeout"`
}

// Duration wraps time.Duration so YAML values like "30m" parse.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ScoringConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

type HistoryConfig struct {
	Cap int `yaml:"cap"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8888"},
		Redis:  RedisConfig{Addr: "localhost:6379", Enabled: false},
		Intel: IntelConfig{
			FeedURL:       "https://threatfox-api.abuse.ch/api/v1/",
			CacheTTL:      Duration(time.Hour),
			MaxLookups:    20,
			LookupTimeout: Duration(10 * time.Second),
		},
		Scoring: ScoringConfig{ConfidenceThreshold: 0.65},
		History: HistoryConfig{Cap: 100},
	}
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Intel.MaxLookups <= 0 {
		cfg.Intel.MaxLookups = 20
	}
	if cfg.Intel.CacheTTL <= 0 {
		cfg.Intel.CacheTTL = Duration(time.Hour)
	}
	if cfg.Intel.LookupTimeout <= 0 {
		cfg.Intel.LookupTimeout = Duration(10 * time.Second)
	}
	if cfg.Scoring.ConfidenceThreshold <= 0 || cfg.Scoring.ConfidenceThreshold > 1 {
		cfg.Scoring.ConfidenceThreshold = 0.65
	}
	if cfg.History.Cap <= 0 {
		cfg.History.Cap = 100
	}
	return cfg, nil
}
