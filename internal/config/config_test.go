// Package config provides configuration management for devark.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir     string
	origHomeDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()

	s.origHomeDir = os.Getenv("HOME")
	os.Setenv("HOME", s.tempDir)
	Reset()
}

func (s *ConfigSuite) TearDownTest() {
	os.Setenv("HOME", s.origHomeDir)
	for _, key := range []string{
		"DEVARK_WORKER_PORT", "DEVARK_MODEL", "DEVARK_ANTHROPIC_KEY",
		"DEVARK_BASE_URL", "DEVARK_POLL_INTERVAL", "DEVARK_IGNORE_PATTERNS",
		"DEVARK_LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
	Reset()
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultModel, cfg.Model)
	s.Equal(DefaultBaseURL, cfg.BaseURL)
	s.Equal(DefaultPollInterval, cfg.PollInterval)
	s.Equal(DefaultMaxConns, cfg.MaxConns)
	s.Equal("info", cfg.LogLevel)
}

func (s *ConfigSuite) TestPaths() {
	s.Contains(Path(), ".devark")
	s.Contains(Path(), "config.yaml")
	s.Contains(DBPath(), "devark.db")
}

func (s *ConfigSuite) TestLoadMissingFileUsesDefaults() {
	cfg, err := Load()
	s.NoError(err)
	s.Equal(Default(), cfg)
}

func (s *ConfigSuite) writeConfig(content string) {
	path := filepath.Join(s.tempDir, ".devark", "config.yaml")
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
}

func (s *ConfigSuite) TestLoadFromFile() {
	s.writeConfig(`
worker_port: 38888
model: claude-sonnet-4-5
ignore_patterns:
  - .env
  - secrets
`)

	cfg, err := Load()
	s.NoError(err)
	s.Equal(38888, cfg.WorkerPort)
	s.Equal("claude-sonnet-4-5", cfg.Model)
	s.Equal([]string{".env", "secrets"}, cfg.IgnorePatterns)
	// Unset keys keep their defaults.
	s.Equal(DefaultBaseURL, cfg.BaseURL)
}

func (s *ConfigSuite) TestLoadDurationString() {
	s.writeConfig("poll_interval: 750ms\n")

	cfg, err := Load()
	s.NoError(err)
	s.Equal(750*time.Millisecond, cfg.PollInterval)
}

func (s *ConfigSuite) TestLoadBadDuration() {
	s.writeConfig("poll_interval: soonish\n")
	_, err := Load()
	s.Error(err)
}

func (s *ConfigSuite) TestLoadInvalidYAML() {
	s.writeConfig("worker_port: [not a number")
	_, err := Load()
	s.Error(err)
}

func (s *ConfigSuite) TestEnvOverridesFile() {
	s.writeConfig("worker_port: 38888\n")
	os.Setenv("DEVARK_WORKER_PORT", "40000")
	os.Setenv("DEVARK_MODEL", "claude-opus-4-1")
	os.Setenv("DEVARK_POLL_INTERVAL", "5s")

	cfg, err := Load()
	s.NoError(err)
	s.Equal(40000, cfg.WorkerPort)
	s.Equal("claude-opus-4-1", cfg.Model)
	s.Equal(5*time.Second, cfg.PollInterval)
}

func (s *ConfigSuite) TestInvalidEnvIgnored() {
	os.Setenv("DEVARK_WORKER_PORT", "not-a-port")
	os.Setenv("DEVARK_POLL_INTERVAL", "soon")

	cfg, err := Load()
	s.NoError(err)
	s.Equal(DefaultWorkerPort, cfg.WorkerPort)
	s.Equal(DefaultPollInterval, cfg.PollInterval)
}

func (s *ConfigSuite) TestIgnorePatternsFromEnv() {
	os.Setenv("DEVARK_IGNORE_PATTERNS", " .env, node_modules ,, .git ")

	cfg, err := Load()
	s.NoError(err)
	s.Equal([]string{".env", "node_modules", ".git"}, cfg.IgnorePatterns)
}

func (s *ConfigSuite) TestGetCachesUntilReset() {
	first := Get()
	s.Equal(DefaultWorkerPort, first.WorkerPort)

	os.Setenv("DEVARK_WORKER_PORT", "40001")
	s.Equal(DefaultWorkerPort, Get().WorkerPort)

	Reset()
	s.Equal(40001, Get().WorkerPort)
}

func TestSplitTrim(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ", []string{"a", "b"}},
		{",,", nil},
		{"", nil},
	}
	for _, tc := range cases {
		got := splitTrim(tc.in, ",")
		if len(got) != len(tc.want) {
			t.Fatalf("splitTrim(%q) = %v, want %v", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitTrim(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}
