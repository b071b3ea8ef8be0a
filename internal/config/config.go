// Package config provides configuration management for the INKINGI USSD gateway.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DefaultPort is the HTTP port the gateway listens on.
	DefaultPort = 8080
	// DefaultBackendURL is the backend REST API base URL.
	DefaultBackendURL = "http://localhost:3000"
	// DefaultBackendTimeout is the per-call budget for backend requests.
	DefaultBackendTimeout = 10 * time.Second
	// DefaultSessionTTL is the inactivity window after which sessions are swept.
	DefaultSessionTTL = 30 * time.Minute
	// DefaultSweepInterval is how often expired sessions are removed.
	DefaultSweepInterval = 10 * time.Minute
	// DefaultModel is the Gemini model used for safety guidance.
	DefaultModel = "gemini-flash-lite-latest"
	// DefaultSenderID is the approved SMS sender id.
	DefaultSenderID = "INKINGI"
)

// Session store backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds the gateway configuration.
type Config struct {
	Host              string        `json:"INKINGI_HOST"`
	BackendURL        string        `json:"INKINGI_BACKEND_URL"`
	SessionBackend    string        `json:"INKINGI_SESSION_BACKEND"`
	RedisURL          string        `json:"INKINGI_REDIS_URL"`
	GeminiAPIKey      string        `json:"GEMINI_API_KEY"`
	Model             string        `json:"INKINGI_MODEL"`
	AIInstructions    string        `json:"INKINGI_AI_INSTRUCTIONS"`
	ATUsername        string        `json:"AT_USERNAME"`
	ATAPIKey          string        `json:"AT_API_KEY"`
	SenderID          string        `json:"INKINGI_SMS_SENDER_ID"`
	LocalesDir        string        `json:"INKINGI_LOCALES_DIR"`
	LogLevel          string        `json:"INKINGI_LOG_LEVEL"`
	LogFormat         string        `json:"INKINGI_LOG_FORMAT"`
	RescueTeamNumbers []string      `json:"-"`
	Port              int           `json:"INKINGI_PORT"`
	BackendTimeout    time.Duration `json:"-"`
	SessionTTL        time.Duration `json:"-"`
	SweepInterval     time.Duration `json:"-"`
	SMSEnabled        bool          `json:"INKINGI_SMS_ENABLED"`
	TestRoutes        bool          `json:"INKINGI_TEST_ROUTES"`
}

// settingsFile mirrors the on-disk JSON. Durations and lists are kept as strings.
type settingsFile struct {
	Config
	BackendTimeout    string `json:"INKINGI_BACKEND_TIMEOUT"`
	SessionTTL        string `json:"INKINGI_SESSION_TTL"`
	SweepInterval     string `json:"INKINGI_SWEEP_INTERVAL"`
	RescueTeamNumbers string `json:"INKINGI_RESCUE_TEAM_NUMBERS"`
}

var (
	global     *Config
	globalOnce sync.Once
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Host:           "0.0.0.0",
		Port:           DefaultPort,
		BackendURL:     DefaultBackendURL,
		BackendTimeout: DefaultBackendTimeout,
		SessionBackend: SessionBackendMemory,
		SessionTTL:     DefaultSessionTTL,
		SweepInterval:  DefaultSweepInterval,
		Model:          DefaultModel,
		ATUsername:     "sandbox",
		SenderID:       DefaultSenderID,
		LogLevel:       "info",
		LogFormat:      "json",
	}
}

// DataDir returns the data directory (~/.inkingi).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".inkingi")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0750)
}

// Load reads settings.json and applies environment overrides.
// A missing or unparsable settings file yields defaults, not an error.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err == nil {
		file := settingsFile{Config: *cfg}
		if jsonErr := json.Unmarshal(data, &file); jsonErr == nil {
			cfg = file.merge(cfg)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

func (f settingsFile) merge(defaults *Config) *Config {
	cfg := f.Config
	cfg.BackendTimeout = parseDuration(f.BackendTimeout, defaults.BackendTimeout)
	cfg.SessionTTL = parseDuration(f.SessionTTL, defaults.SessionTTL)
	cfg.SweepInterval = parseDuration(f.SweepInterval, defaults.SweepInterval)
	if f.RescueTeamNumbers != "" {
		cfg.RescueTeamNumbers = splitTrim(f.RescueTeamNumbers)
	}
	if cfg.Port <= 0 {
		cfg.Port = defaults.Port
	}
	return &cfg
}

func applyEnv(cfg *Config) {
	str := map[string]*string{
		"INKINGI_HOST":            &cfg.Host,
		"INKINGI_BACKEND_URL":     &cfg.BackendURL,
		"INKINGI_SESSION_BACKEND": &cfg.SessionBackend,
		"INKINGI_REDIS_URL":       &cfg.RedisURL,
		"GEMINI_API_KEY":          &cfg.GeminiAPIKey,
		"INKINGI_MODEL":           &cfg.Model,
		"INKINGI_AI_INSTRUCTIONS": &cfg.AIInstructions,
		"AT_USERNAME":             &cfg.ATUsername,
		"AT_API_KEY":              &cfg.ATAPIKey,
		"INKINGI_SMS_SENDER_ID":   &cfg.SenderID,
		"INKINGI_LOCALES_DIR":     &cfg.LocalesDir,
		"INKINGI_LOG_LEVEL":       &cfg.LogLevel,
		"INKINGI_LOG_FORMAT":      &cfg.LogFormat,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("INKINGI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := os.Getenv("INKINGI_BACKEND_TIMEOUT"); v != "" {
		cfg.BackendTimeout = parseDuration(v, cfg.BackendTimeout)
	}
	if v := os.Getenv("INKINGI_SESSION_TTL"); v != "" {
		cfg.SessionTTL = parseDuration(v, cfg.SessionTTL)
	}
	if v := os.Getenv("INKINGI_SWEEP_INTERVAL"); v != "" {
		cfg.SweepInterval = parseDuration(v, cfg.SweepInterval)
	}
	if v := os.Getenv("INKINGI_RESCUE_TEAM_NUMBERS"); v != "" {
		cfg.RescueTeamNumbers = splitTrim(v)
	}
	if v := os.Getenv("INKINGI_SMS_ENABLED"); v != "" {
		cfg.SMSEnabled, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("INKINGI_TEST_ROUTES"); v != "" {
		cfg.TestRoutes, _ = strconv.ParseBool(v)
	}
}

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		global = cfg
	})
	return global
}

// GetPort returns the port from INKINGI_PORT, falling back to the loaded config.
func GetPort() int {
	if v := os.Getenv("INKINGI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			return port
		}
	}
	return Get().Port
}

// Sandbox reports whether the Africa's Talking sandbox should be used.
func (c *Config) Sandbox() bool {
	return c.ATUsername == "" || c.ATUsername == "sandbox"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// splitTrim splits a comma-separated list and drops empty values.
func splitTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
