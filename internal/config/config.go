package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultModels is the ranked fallback list used when none is configured.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.5-flash-lite", "gemini-2.0-flash"}

type Config struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	Models          []string      `yaml:"models"`
	DefaultProvider string        `yaml:"default_provider"`
	GeminiBaseURL   string        `yaml:"gemini_base_url"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`

	SecretsBackend string `yaml:"secrets_backend"` // env | file | postgres | none
	SecretKey      string `yaml:"secret_key"`
	SecretsFile    string `yaml:"secrets_file"`
	DatabaseURL    string `yaml:"database_url"`

	NatsURL         string `yaml:"nats_url"`
	NatsToken       string `yaml:"nats_token"`
	HandoverSubject string `yaml:"handover_subject"`

	AccountName string        `yaml:"account_name"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	MaxSessions int           `yaml:"max_sessions"`
}

func defaults() Config {
	return Config{
		Port:            8760,
		LogLevel:        "info",
		Models:          append([]string(nil), DefaultModels...),
		DefaultProvider: "gemini",
		GeminiBaseURL:   "https://generativelanguage.googleapis.com",
		OpenAIBaseURL:   "https://api.openai.com/v1",
		RequestTimeout:  120 * time.Second,
		SecretsBackend:  "env",
		SecretKey:       "GOOGLE_API_KEY",
		HandoverSubject: "contextbridge.handover.approved",
		AccountName:     "Global Corp Ltd",
		SessionTTL:      12 * time.Hour,
		MaxSessions:     1000,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONTEXTBRIDGE_CONFIG (if any), then environment variables.
func Load() (Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONTEXTBRIDGE_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.Port = envInt("CONTEXTBRIDGE_PORT", cfg.Port)
	cfg.LogLevel = envStr("LOG_LEVEL", cfg.LogLevel)
	cfg.Models = envList("CONTEXTBRIDGE_MODELS", cfg.Models)
	cfg.DefaultProvider = envStr("CONTEXTBRIDGE_PROVIDER", cfg.DefaultProvider)
	cfg.GeminiBaseURL = envStr("GEMINI_BASE_URL", cfg.GeminiBaseURL)
	cfg.OpenAIBaseURL = envStr("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.RequestTimeout = envDuration("CONTEXTBRIDGE_REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.SecretsBackend = envStr("CONTEXTBRIDGE_SECRETS_BACKEND", cfg.SecretsBackend)
	cfg.SecretKey = envStr("CONTEXTBRIDGE_SECRET_KEY", cfg.SecretKey)
	cfg.SecretsFile = envStr("CONTEXTBRIDGE_SECRETS_FILE", cfg.SecretsFile)
	cfg.DatabaseURL = envStr("DATABASE_URL", cfg.DatabaseURL)
	cfg.NatsURL = envStr("NATS_URL", cfg.NatsURL)
	cfg.NatsToken = envStr("NATS_TOKEN", cfg.NatsToken)
	cfg.HandoverSubject = envStr("CONTEXTBRIDGE_HANDOVER_SUBJECT", cfg.HandoverSubject)
	cfg.AccountName = envStr("CONTEXTBRIDGE_ACCOUNT", cfg.AccountName)
	cfg.SessionTTL = envDuration("CONTEXTBRIDGE_SESSION_TTL", cfg.SessionTTL)
	cfg.MaxSessions = envInt("CONTEXTBRIDGE_MAX_SESSIONS", cfg.MaxSessions)

	if len(cfg.Models) == 0 {
		return Config{}, fmt.Errorf("config: at least one model candidate is required")
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks. Order is kept.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
