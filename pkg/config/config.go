package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string `validate:"required,oneof=development test production"`
	LogLevel  string `validate:"omitempty,oneof=debug info warn error"`
	LogFormat string `validate:"omitempty,oneof=text json"`

	// API
	APIURL      string        `validate:"required,url"`
	Token       string
	TokenEnvVar string
	HTTPTimeout time.Duration `validate:"gt=0"`

	// OAuth2 client credentials; used instead of the bearer token when
	// OAuthTokenURL is set.
	OAuthTokenURL     string `validate:"omitempty,url"`
	OAuthClientID     string `validate:"required_with=OAuthTokenURL"`
	OAuthClientSecret string
	OAuthScopes       []string

	// Circuit breaker
	BreakerEnabled     bool
	BreakerFailures    int           `validate:"gte=1"`
	BreakerOpenTimeout time.Duration `validate:"gte=0"`

	// Editors
	UndoDepth int     `validate:"gte=1,lte=200"`
	MaxGrade  float64 `validate:"gt=0"`
	ClassID   string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "")),

		APIURL:      getEnv("SCHOOLDESK_API_URL", "http://localhost:8000/api"),
		Token:       getEnv("SCHOOLDESK_TOKEN", ""),
		TokenEnvVar: "SCHOOLDESK_TOKEN",
		HTTPTimeout: getDurationEnv("SCHOOLDESK_HTTP_TIMEOUT", 15*time.Second),

		OAuthTokenURL:     getEnv("SCHOOLDESK_OAUTH_TOKEN_URL", ""),
		OAuthClientID:     getEnv("SCHOOLDESK_OAUTH_CLIENT_ID", ""),
		OAuthClientSecret: getEnv("SCHOOLDESK_OAUTH_CLIENT_SECRET", ""),
		OAuthScopes:       getListEnv("SCHOOLDESK_OAUTH_SCOPES"),

		BreakerEnabled:     getBoolEnv("SCHOOLDESK_BREAKER_ENABLED", true),
		BreakerFailures:    getIntEnv("SCHOOLDESK_BREAKER_FAILURES", 5),
		BreakerOpenTimeout: getDurationEnv("SCHOOLDESK_BREAKER_TIMEOUT", 30*time.Second),

		UndoDepth: getIntEnv("SCHOOLDESK_UNDO_DEPTH", 20),
		MaxGrade:  getFloatEnv("SCHOOLDESK_MAX_GRADE", 20),
		ClassID:   getEnv("SCHOOLDESK_CLASS_ID", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
