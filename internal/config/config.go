package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Env     string `envconfig:"APP_ENV" default:"development"`
	Port    int    `envconfig:"APP_PORT" default:"8080"`
	DB      DBConfig
	Storage StorageConfig
	Upload  UploadConfig
	STT     STTConfig
	Agent   AgentConfig
	Auth    AuthConfig
	CORS    CORSConfig
}

// database configuration
type DBConfig struct {
	Path        string        `envconfig:"DB_PATH" default:"data/muninn.db"`
	BusyTimeout time.Duration `envconfig:"DB_BUSY_TIMEOUT" default:"5s"`
}

// on-disk layout next to the database file
type StorageConfig struct {
	AudioDir    string `envconfig:"AUDIO_DIR" default:"data/audio"`
	MarkdownDir string `envconfig:"MARKDOWN_DIR" default:"data/markdown"`
}

// upload limits
type UploadConfig struct {
	MaxBytes        int64         `envconfig:"UPLOAD_MAX_BYTES" default:"52428800"` // 50 MiB
	ChunkIdleWindow time.Duration `envconfig:"UPLOAD_CHUNK_IDLE_WINDOW" default:"15m"`
}

// speech-to-text collaborator configuration
type STTConfig struct {
	APIKey      string        `envconfig:"STT_API_KEY" required:"true"`
	BaseURL     string        `envconfig:"STT_BASE_URL" default:"https://api.openai.com/v1"`
	Model       string        `envconfig:"STT_MODEL" default:"whisper-1"`
	Timeout     time.Duration `envconfig:"STT_TIMEOUT" default:"3m"`
	MaxAttempts int           `envconfig:"STT_MAX_ATTEMPTS" default:"3"`
}

// analysis agent configuration
type AgentConfig struct {
	APIKey      string        `envconfig:"AGENT_API_KEY" required:"true"`
	BaseURL     string        `envconfig:"AGENT_BASE_URL" default:"https://api.anthropic.com/v1"`
	Model       string        `envconfig:"AGENT_MODEL" default:"claude-sonnet-4-20250514"`
	Timeout     time.Duration `envconfig:"AGENT_TIMEOUT" default:"2m"`
	MaxAttempts int           `envconfig:"AGENT_MAX_ATTEMPTS" default:"3"`
}

// single-allowed-user gate; the API is open when the token is empty
type AuthConfig struct {
	AccessToken string `envconfig:"AUTH_ACCESS_TOKEN"`
}

// CORS configuration
type CORSConfig struct {
	TrustedOrigins []string `envconfig:"CORS_TRUSTED_ORIGINS" default:"http://localhost:5173"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[c.Env] {
		return fmt.Errorf("invalid environment: %s (must be one of: development, staging, production, test)", c.Env)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be between 1 and 65535)", c.Port)
	}
	if c.DB.Path == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.Upload.MaxBytes < 1 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.Upload.ChunkIdleWindow <= 0 {
		return fmt.Errorf("UPLOAD_CHUNK_IDLE_WINDOW must be positive")
	}
	if c.STT.Timeout <= 0 || c.Agent.Timeout <= 0 {
		return fmt.Errorf("collaborator timeouts must be positive")
	}
	if c.STT.MaxAttempts < 1 || c.Agent.MaxAttempts < 1 {
		return fmt.Errorf("collaborator max attempts must be at least 1")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
