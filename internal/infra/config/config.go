// Package config provides application-wide configuration.
// Values load from an optional YAML file, then environment variables override,
// then defaults fill the gaps, so the binary runs locally with no setup at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for buster.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	LLM    LLMConfig    `yaml:"llm"`
	Tools  ToolsConfig  `yaml:"tools"`
	Log    LogConfig    `yaml:"log"`
	Cron   CronConfig   `yaml:"cron"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DBConfig holds SQLite settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// LLMConfig holds reasoning-engine provider settings.
type LLMConfig struct {
	Provider  string `yaml:"provider"`
	BaseURL   string `yaml:"base_url"`
	ChatModel string `yaml:"chat_model"`
}

// Duration wraps time.Duration so YAML values like "30s" parse directly.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string ("30s", "1m30s").
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ToolsConfig bounds tool-call execution within a turn.
// MaxConcurrency is a process-global bound shared by all turns: it protects
// the SQLite connection pool, not any single conversation. CallTimeout is
// enforced per individual call, never per turn.
type ToolsConfig struct {
	MaxConcurrency int      `yaml:"max_concurrency"`
	CallTimeout    Duration `yaml:"call_timeout"`
	MaxTurnSteps   int      `yaml:"max_turn_steps"`
}

// LogConfig holds structured-logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// CronConfig holds the catalog refresher schedule.
type CronConfig struct {
	RefreshSchedule string `yaml:"refresh_schedule"`
}

const (
	envKeyServerHost   = "BUSTER_HOST"
	envKeyServerPort   = "BUSTER_PORT"
	envKeyDBPath       = "BUSTER_DB_PATH"
	envKeyLLMProvider  = "LLM_PROVIDER"
	envKeyLLMBaseURL   = "LLM_BASE_URL"
	envKeyLLMChatModel = "LLM_CHAT_MODEL"
	envKeyLogLevel     = "LOG_LEVEL"
	envKeyLogFormat    = "LOG_FORMAT"
)

// Default returns the configuration used when no file and no env vars are set.
func Default() Config {
	return Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DB:     DBConfig{Path: "buster.db"},
		LLM: LLMConfig{
			Provider:  "ollama",
			BaseURL:   "http://localhost:11434",
			ChatModel: "llama3.2:3b",
		},
		Tools: ToolsConfig{
			MaxConcurrency: 4,
			CallTimeout:    Duration(30 * time.Second),
			MaxTurnSteps:   8,
		},
		Log:  LogConfig{Level: "info", Format: "text"},
		Cron: CronConfig{RefreshSchedule: "@every 15m"},
	}
}

// Load reads configuration from path (optional; empty path or a missing file
// is not an error), applies env-var overrides, and fills defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// absent file keeps defaults
		case err != nil:
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
			}
		}
	}

	applyEnvOverrides(&cfg)
	applyBounds(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Server.Host = envOr(envKeyServerHost, cfg.Server.Host)
	if port, ok := envInt(envKeyServerPort); ok {
		cfg.Server.Port = port
	}
	cfg.DB.Path = envOr(envKeyDBPath, cfg.DB.Path)
	cfg.LLM.Provider = envOr(envKeyLLMProvider, cfg.LLM.Provider)
	cfg.LLM.BaseURL = envOr(envKeyLLMBaseURL, cfg.LLM.BaseURL)
	cfg.LLM.ChatModel = envOr(envKeyLLMChatModel, cfg.LLM.ChatModel)
	cfg.Log.Level = envOr(envKeyLogLevel, cfg.Log.Level)
	cfg.Log.Format = envOr(envKeyLogFormat, cfg.Log.Format)
}

// applyBounds clamps nonsensical values back to defaults so a bad config file
// cannot disable the concurrency bound or the per-call timeout.
func applyBounds(cfg *Config) {
	def := Default()
	if cfg.Tools.MaxConcurrency <= 0 {
		cfg.Tools.MaxConcurrency = def.Tools.MaxConcurrency
	}
	if cfg.Tools.CallTimeout <= 0 {
		cfg.Tools.CallTimeout = def.Tools.CallTimeout
	}
	if cfg.Tools.MaxTurnSteps <= 0 {
		cfg.Tools.MaxTurnSteps = def.Tools.MaxTurnSteps
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		cfg.Server.Port = def.Server.Port
	}
}

// envOr returns the value of the environment variable key, or fallback if not set.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt returns the integer value of key and whether it was set and valid.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
