// Package config provides configuration management for devark.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/DevArk-AI/devark/internal/paths"
)

// Defaults.
const (
	DefaultWorkerPort   = 43717
	DefaultModel        = "claude-3-5-haiku-latest"
	DefaultBaseURL      = "https://api.devark.ai"
	DefaultPollInterval = 2 * time.Second
	DefaultMaxConns     = 4
)

// Config holds the sidecar's runtime configuration. Values come from
// ~/.devark/config.yaml and can be overridden per key with DEVARK_* env
// variables.
type Config struct {
	WorkerPort     int           `yaml:"worker_port"`
	Model          string        `yaml:"model"`
	AnthropicKey   string        `yaml:"anthropic_key"`
	BaseURL        string        `yaml:"base_url"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxConns       int           `yaml:"max_conns"`
	IgnorePatterns []string      `yaml:"ignore_patterns"`
	LogLevel       string        `yaml:"log_level"`
}

// UnmarshalYAML decodes the config, accepting poll_interval as a duration
// string ("2s", "500ms"). Keys absent from the file keep the receiver's
// current values, so defaults survive a partial file.
func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	aux := struct {
		WorkerPort     int      `yaml:"worker_port"`
		Model          string   `yaml:"model"`
		AnthropicKey   string   `yaml:"anthropic_key"`
		BaseURL        string   `yaml:"base_url"`
		PollInterval   string   `yaml:"poll_interval"`
		MaxConns       int      `yaml:"max_conns"`
		IgnorePatterns []string `yaml:"ignore_patterns"`
		LogLevel       string   `yaml:"log_level"`
	}{
		WorkerPort:     c.WorkerPort,
		Model:          c.Model,
		AnthropicKey:   c.AnthropicKey,
		BaseURL:        c.BaseURL,
		MaxConns:       c.MaxConns,
		IgnorePatterns: c.IgnorePatterns,
		LogLevel:       c.LogLevel,
	}
	if err := node.Decode(&aux); err != nil {
		return err
	}

	c.WorkerPort = aux.WorkerPort
	c.Model = aux.Model
	c.AnthropicKey = aux.AnthropicKey
	c.BaseURL = aux.BaseURL
	c.MaxConns = aux.MaxConns
	c.IgnorePatterns = aux.IgnorePatterns
	c.LogLevel = aux.LogLevel
	if aux.PollInterval != "" {
		d, err := time.ParseDuration(aux.PollInterval)
		if err != nil {
			return fmt.Errorf("parse poll_interval: %w", err)
		}
		c.PollInterval = d
	}
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		WorkerPort:   DefaultWorkerPort,
		Model:        DefaultModel,
		BaseURL:      DefaultBaseURL,
		PollInterval: DefaultPollInterval,
		MaxConns:     DefaultMaxConns,
		LogLevel:     "info",
	}
}

// Path returns the config file location.
func Path() string {
	return filepath.Join(paths.DevarkDir(), "config.yaml")
}

// DBPath returns the history database location.
func DBPath() string {
	return filepath.Join(paths.DevarkDir(), "devark.db")
}

// Load reads the config file, fills gaps with defaults and applies env
// overrides. A missing file is not an error.
func Load() (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(Path())
	switch {
	case os.IsNotExist(err):
		// defaults only
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)
	if cfg.WorkerPort <= 0 {
		cfg.WorkerPort = DefaultWorkerPort
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}
	return cfg, nil
}

// applyEnv overrides file values with DEVARK_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DEVARK_WORKER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 {
			log.Warn().Str("value", v).Msg("Ignoring invalid DEVARK_WORKER_PORT")
		} else {
			cfg.WorkerPort = port
		}
	}
	if v := os.Getenv("DEVARK_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("DEVARK_ANTHROPIC_KEY"); v != "" {
		cfg.AnthropicKey = v
	}
	if v := os.Getenv("DEVARK_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("DEVARK_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Warn().Str("value", v).Msg("Ignoring invalid DEVARK_POLL_INTERVAL")
		} else {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("DEVARK_IGNORE_PATTERNS"); v != "" {
		cfg.IgnorePatterns = splitTrim(v, ",")
	}
	if v := os.Getenv("DEVARK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// splitTrim splits on sep and drops empty parts.
func splitTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var (
	mu     sync.Mutex
	loaded *Config
)

// Get returns the singleton configuration, loading it on first use.
func Get() Config {
	mu.Lock()
	defer mu.Unlock()
	if loaded == nil {
		cfg, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Config load failed, using defaults")
		}
		loaded = &cfg
	}
	return *loaded
}

// Reset clears the singleton so the next Get reloads. For tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	loaded = nil
}
