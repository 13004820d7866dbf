package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// LogConfig selects the server's log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // trace|debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

// ServerConfig defines how the relay backend should run.
type ServerConfig struct {
	Addr            string    `yaml:"addr"`
	Path            string    `yaml:"path"`
	AllowedOrigins  []string  `yaml:"allowed_origins"`
	HistoryCapacity int       `yaml:"history_capacity"`
	Log             LogConfig `yaml:"log"`
}

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL string
	Username  string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":5000",
		Path:            "/ws",
		HistoryCapacity: 500,
		Log:             LogConfig{Level: "info", Format: "console"},
	}
}

// LoadServerConfig builds the server configuration from defaults, an
// optional YAML file, and RELAY_* environment overrides, in that order.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := defaultServerConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	sanitize(&cfg)
	return cfg, nil
}

func applyEnv(cfg *ServerConfig) {
	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if path := os.Getenv("RELAY_PATH"); path != "" {
		cfg.Path = path
	}
	if origins := os.Getenv("RELAY_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitOrigins(origins)
	}
	if capacity := os.Getenv("RELAY_HISTORY_CAPACITY"); capacity != "" {
		if parsed, err := strconv.Atoi(capacity); err == nil && parsed > 0 {
			cfg.HistoryCapacity = parsed
		}
	}
	if level := os.Getenv("RELAY_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("RELAY_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}
}

func sanitize(cfg *ServerConfig) {
	if cfg.Addr == "" {
		cfg.Addr = ":5000"
	}
	cfg.Path = NormalizeWSPath(cfg.Path)
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = 500
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func splitOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	cleaned := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// NormalizeWSPath guarantees the websocket path starts with '/' and falls
// back to /ws when empty.
func NormalizeWSPath(path string) string {
	if path == "" {
		return "/ws"
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}
