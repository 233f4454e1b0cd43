package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at boot. Values come from an
// optional YAML file and are overridden by environment variables, so a plain
// `DATABASE_URL=... ./server` works without any file present.
type Config struct {
	// Server
	ListenAddr   string        `yaml:"listen_addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// Database (risk/alert log)
	DatabaseURL   string `yaml:"database_url"`
	NotifyChannel string `yaml:"notify_channel"`

	// Completion service
	LLMAPIKey   string `yaml:"llm_api_key"`
	LLMBaseURL  string `yaml:"llm_base_url"`
	LLMModel    string `yaml:"llm_model"`
	LLMMaxToken int    `yaml:"llm_max_tokens"`

	// Uploads
	UploadDir    string `yaml:"upload_dir"`
	MaxUploadMiB int64  `yaml:"max_upload_mib"`

	// Dialogue
	DefaultLanguage string `yaml:"default_language"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:      ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		NotifyChannel:   "doctor_alerts",
		LLMBaseURL:      "https://api.groq.com/openai/v1",
		LLMModel:        "llama-3.1-8b-instant",
		LLMMaxToken:     500,
		UploadDir:       "uploads",
		MaxUploadMiB:    16,
		DefaultLanguage: "en",
	}
}

// Load reads the config file at path (skipped when path is empty or the file
// does not exist), then applies environment overrides. DATABASE_URL is the
// only required value.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.NotifyChannel = getEnv("NOTIFY_CHANNEL", cfg.NotifyChannel)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LLMMaxToken = getIntEnv("LLM_MAX_TOKENS", cfg.LLMMaxToken)
	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.MaxUploadMiB = int64(getIntEnv("MAX_UPLOAD_MIB", int(cfg.MaxUploadMiB)))
	cfg.DefaultLanguage = getEnv("DEFAULT_LANGUAGE", cfg.DefaultLanguage)
	cfg.ReadTimeout = getDuration("READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getDuration("WRITE_TIMEOUT", cfg.WriteTimeout)

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
