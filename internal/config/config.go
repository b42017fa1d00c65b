// ABOUTME: Centralized configuration for the tutor CLI and MCP server
// ABOUTME: Loads from environment variables and an optional .env file with validation and defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the tutor
type Config struct {
	// Storage settings
	Backend string `validate:"oneof=sqlite charm"`
	DBPath  string `validate:"required"`

	// Charm settings
	CharmHost   string `validate:"required_if=Backend charm"`
	CharmDBName string `validate:"required_if=Backend charm"`
	AutoSync    bool

	// OpenAI settings
	OpenAIKey      string
	ChatModel      string        `validate:"required"`
	EmbeddingModel string        `validate:"required"`
	Timeout        time.Duration `validate:"min=0"`
	MaxRetries     int           `validate:"min=0,max=10"`
	RetryDelay     time.Duration `validate:"min=0"`
	RateLimit      float64       `validate:"min=0"`

	// Routing settings
	MaxCycles       int     `validate:"min=1,max=50"`
	TieMargin       float64 `validate:"min=0,max=1"`
	EvaluateAnswers bool
	RetrievalTopK   int `validate:"min=0,max=50"`

	// Logging
	LogLevel string `validate:"oneof=debug info warn error"`
}

// DefaultDBPath returns the default database location under the XDG data directory
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "tutor", "tutor.db")
}

// LoadDotEnv reads a .env file into the environment when one exists.
// Variables already set take precedence.
func LoadDotEnv(paths ...string) error {
	err := godotenv.Load(paths...)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		// Defaults
		Backend:         strings.ToLower(getEnv("TUTOR_BACKEND", "sqlite")),
		DBPath:          getEnv("TUTOR_DB_PATH", DefaultDBPath()),
		CharmHost:       getEnv("CHARM_HOST", "charm.2389.dev"),
		CharmDBName:     getEnv("CHARM_DB", "tutor"),
		AutoSync:        getEnvBool("CHARM_AUTO_SYNC", true),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		ChatModel:       getEnv("TUTOR_OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  getEnv("TUTOR_EMBEDDING_MODEL", "text-embedding-3-small"),
		Timeout:         getEnvDuration("TUTOR_CALL_TIMEOUT", 30*time.Second),
		MaxRetries:      getEnvInt("OPENAI_MAX_RETRIES", 3),
		RetryDelay:      getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),
		RateLimit:       getEnvFloat("TUTOR_RATE_LIMIT", 2),
		MaxCycles:       getEnvInt("TUTOR_MAX_CYCLES", 6),
		TieMargin:       getEnvFloat("TUTOR_TIE_MARGIN", 0.10),
		EvaluateAnswers: getEnvBool("TUTOR_EVALUATE_ANSWERS", true),
		RetrievalTopK:   getEnvInt("TUTOR_RETRIEVAL_TOP_K", 5),
		LogLevel:        strings.ToLower(getEnv("TUTOR_LOG_LEVEL", "warn")),
	}

	return cfg, cfg.Validate()
}

var validate = validator.New()

// Validate checks every field against its constraints and reports the first violation
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid %s: %v fails %q", envName(e.Field()), e.Value(), e.Tag()+paramSuffix(e.Param()))
		}
		return err
	}
	return nil
}

// HasOpenAI reports whether an OpenAI key is configured
func (c *Config) HasOpenAI() bool {
	return c.OpenAIKey != ""
}

// envNames maps config fields to the variables that set them
var envNames = map[string]string{
	"Backend":        "TUTOR_BACKEND",
	"DBPath":         "TUTOR_DB_PATH",
	"CharmHost":      "CHARM_HOST",
	"CharmDBName":    "CHARM_DB",
	"ChatModel":      "TUTOR_OPENAI_MODEL",
	"EmbeddingModel": "TUTOR_EMBEDDING_MODEL",
	"Timeout":        "TUTOR_CALL_TIMEOUT",
	"MaxRetries":     "OPENAI_MAX_RETRIES",
	"RetryDelay":     "OPENAI_RETRY_DELAY",
	"RateLimit":      "TUTOR_RATE_LIMIT",
	"MaxCycles":      "TUTOR_MAX_CYCLES",
	"TieMargin":      "TUTOR_TIE_MARGIN",
	"RetrievalTopK":  "TUTOR_RETRIEVAL_TOP_K",
	"LogLevel":       "TUTOR_LOG_LEVEL",
}

func envName(field string) string {
	if name, ok := envNames[field]; ok {
		return name
	}
	return field
}

func paramSuffix(param string) string {
	if param == "" {
		return ""
	}
	return "=" + param
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
