// Package config provides configuration management for the INKINGI USSD gateway.
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ConfigSuite is a test suite for config operations.
type ConfigSuite struct {
	suite.Suite
	tempDir string
}

func (s *ConfigSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.T().Setenv("HOME", s.tempDir)
	for _, key := range []string{
		"INKINGI_PORT", "INKINGI_BACKEND_URL", "INKINGI_BACKEND_TIMEOUT",
		"INKINGI_SESSION_TTL", "INKINGI_SESSION_BACKEND", "INKINGI_RESCUE_TEAM_NUMBERS",
		"INKINGI_SMS_ENABLED", "GEMINI_API_KEY",
	} {
		s.T().Setenv(key, "")
	}
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) writeSettings(content string) {
	s.Require().NoError(os.MkdirAll(filepath.Join(s.tempDir, ".inkingi"), 0750))
	s.Require().NoError(os.WriteFile(filepath.Join(s.tempDir, ".inkingi", "settings.json"), []byte(content), 0600))
}

// TestDefault tests default configuration values.
func (s *ConfigSuite) TestDefault() {
	cfg := Default()

	s.Equal(DefaultPort, cfg.Port)
	s.Equal(DefaultBackendURL, cfg.BackendURL)
	s.Equal(10*time.Second, cfg.BackendTimeout)
	s.Equal(30*time.Minute, cfg.SessionTTL)
	s.Equal(10*time.Minute, cfg.SweepInterval)
	s.Equal(SessionBackendMemory, cfg.SessionBackend)
	s.Equal(DefaultModel, cfg.Model)
	s.Equal(DefaultSenderID, cfg.SenderID)
	s.True(cfg.Sandbox())
	s.False(cfg.SMSEnabled)
}

// TestPaths tests data directory and settings paths.
func (s *ConfigSuite) TestPaths() {
	s.Contains(DataDir(), ".inkingi")
	s.Contains(SettingsPath(), "settings.json")

	s.NoError(EnsureDataDir())
	info, err := os.Stat(DataDir())
	s.NoError(err)
	s.True(info.IsDir())
}

// TestLoad_TableDriven tests configuration loading with various settings files.
func (s *ConfigSuite) TestLoad_TableDriven() {
	tests := []struct {
		name            string
		settingsJSON    string
		expectedPort    int
		expectedURL     string
		expectedTimeout time.Duration
	}{
		{
			name:            "no settings file",
			expectedPort:    DefaultPort,
			expectedURL:     DefaultBackendURL,
			expectedTimeout: DefaultBackendTimeout,
		},
		{
			name:            "custom port",
			settingsJSON:    `{"INKINGI_PORT": 9090}`,
			expectedPort:    9090,
			expectedURL:     DefaultBackendURL,
			expectedTimeout: DefaultBackendTimeout,
		},
		{
			name:            "custom backend",
			settingsJSON:    `{"INKINGI_BACKEND_URL": "https://api.example.rw", "INKINGI_BACKEND_TIMEOUT": "3s"}`,
			expectedPort:    DefaultPort,
			expectedURL:     "https://api.example.rw",
			expectedTimeout: 3 * time.Second,
		},
		{
			name:            "invalid duration keeps default",
			settingsJSON:    `{"INKINGI_BACKEND_TIMEOUT": "soon"}`,
			expectedPort:    DefaultPort,
			expectedURL:     DefaultBackendURL,
			expectedTimeout: DefaultBackendTimeout,
		},
		{
			name:            "invalid JSON returns defaults",
			settingsJSON:    `{invalid}`,
			expectedPort:    DefaultPort,
			expectedURL:     DefaultBackendURL,
			expectedTimeout: DefaultBackendTimeout,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_ = os.Remove(SettingsPath())
			if tt.settingsJSON != "" {
				s.writeSettings(tt.settingsJSON)
			}

			cfg, err := Load()
			s.NoError(err)
			s.Require().NotNil(cfg)
			s.Equal(tt.expectedPort, cfg.Port)
			s.Equal(tt.expectedURL, cfg.BackendURL)
			s.Equal(tt.expectedTimeout, cfg.BackendTimeout)
		})
	}
}

// TestLoad_EnvOverridesFile tests that environment variables win over the file.
func (s *ConfigSuite) TestLoad_EnvOverridesFile() {
	s.writeSettings(`{"INKINGI_PORT": 9090, "INKINGI_SESSION_BACKEND": "memory"}`)
	s.T().Setenv("INKINGI_PORT", "7070")
	s.T().Setenv("INKINGI_SESSION_BACKEND", "redis")
	s.T().Setenv("INKINGI_RESCUE_TEAM_NUMBERS", "+250788000001, +250788000002,")
	s.T().Setenv("INKINGI_SMS_ENABLED", "true")

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal(7070, cfg.Port)
	s.Equal(SessionBackendRedis, cfg.SessionBackend)
	s.Equal([]string{"+250788000001", "+250788000002"}, cfg.RescueTeamNumbers)
	s.True(cfg.SMSEnabled)
}

// TestLoad_RescueTeamFromFile tests comma separated lists in the settings file.
func (s *ConfigSuite) TestLoad_RescueTeamFromFile() {
	s.writeSettings(`{"INKINGI_RESCUE_TEAM_NUMBERS": "+250788000001", "AT_USERNAME": "inkingi"}`)

	cfg, err := Load()
	s.Require().NoError(err)
	s.Equal([]string{"+250788000001"}, cfg.RescueTeamNumbers)
	s.False(cfg.Sandbox())
}

// TestSplitTrim tests the splitTrim helper function.
func TestSplitTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "empty string", input: "", expected: []string{}},
		{name: "single value", input: "+250788000001", expected: []string{"+250788000001"}},
		{name: "values with spaces", input: " a , b ", expected: []string{"a", "b"}},
		{name: "empty values filtered", input: "a,,b,,", expected: []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, splitTrim(tt.input))
		})
	}
}

// TestGetPort_WithEnv tests GetPort with environment variable.
func TestGetPort_WithEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	t.Setenv("INKINGI_PORT", "45678")
	assert.Equal(t, 45678, GetPort())

	t.Setenv("INKINGI_PORT", "not-a-number")
	assert.Greater(t, GetPort(), 0)

	t.Setenv("INKINGI_PORT", "0")
	assert.Greater(t, GetPort(), 0)
}

// TestGet tests the global config getter.
func TestGet(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Get()
	require.NotNil(t, cfg)
	assert.Greater(t, cfg.Port, 0)
	assert.NotEmpty(t, cfg.Model)
	assert.Same(t, cfg, Get())
}
