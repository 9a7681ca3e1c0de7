package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnvVars clears all schooldesk-related environment variables.
func clearEnvVars() {
	envVars := []string{
		"APP_ENV", "LOG_LEVEL", "LOG_FORMAT",
		"SCHOOLDESK_API_URL", "SCHOOLDESK_TOKEN", "SCHOOLDESK_HTTP_TIMEOUT",
		"SCHOOLDESK_BREAKER_ENABLED", "SCHOOLDESK_BREAKER_FAILURES", "SCHOOLDESK_BREAKER_TIMEOUT",
		"SCHOOLDESK_UNDO_DEPTH", "SCHOOLDESK_MAX_GRADE", "SCHOOLDESK_CLASS_ID",
		"SCHOOLDESK_OAUTH_TOKEN_URL", "SCHOOLDESK_OAUTH_CLIENT_ID",
		"SCHOOLDESK_OAUTH_CLIENT_SECRET", "SCHOOLDESK_OAUTH_SCOPES",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.LogFormat)

	assert.Equal(t, "http://localhost:8000/api", cfg.APIURL)
	assert.Equal(t, "", cfg.Token)
	assert.Equal(t, "SCHOOLDESK_TOKEN", cfg.TokenEnvVar)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)

	assert.True(t, cfg.BreakerEnabled)
	assert.Equal(t, 5, cfg.BreakerFailures)
	assert.Equal(t, 30*time.Second, cfg.BreakerOpenTimeout)

	assert.Equal(t, 20, cfg.UndoDepth)
	assert.Equal(t, 20.0, cfg.MaxGrade)
	assert.Equal(t, "", cfg.ClassID)

	assert.False(t, cfg.IsProduction())
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("APP_ENV", "production")
	os.Setenv("LOG_LEVEL", "DEBUG")
	os.Setenv("LOG_FORMAT", "json")
	os.Setenv("SCHOOLDESK_API_URL", "https://school.example.org/api")
	os.Setenv("SCHOOLDESK_TOKEN", "abc")
	os.Setenv("SCHOOLDESK_HTTP_TIMEOUT", "3s")
	os.Setenv("SCHOOLDESK_BREAKER_ENABLED", "false")
	os.Setenv("SCHOOLDESK_BREAKER_FAILURES", "2")
	os.Setenv("SCHOOLDESK_UNDO_DEPTH", "5")
	os.Setenv("SCHOOLDESK_MAX_GRADE", "100")
	os.Setenv("SCHOOLDESK_CLASS_ID", "12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "https://school.example.org/api", cfg.APIURL)
	assert.Equal(t, "abc", cfg.Token)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.False(t, cfg.BreakerEnabled)
	assert.Equal(t, 2, cfg.BreakerFailures)
	assert.Equal(t, 5, cfg.UndoDepth)
	assert.Equal(t, 100.0, cfg.MaxGrade)
	assert.Equal(t, "12", cfg.ClassID)
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("SCHOOLDESK_HTTP_TIMEOUT", "soon")
	os.Setenv("SCHOOLDESK_UNDO_DEPTH", "many")
	os.Setenv("SCHOOLDESK_BREAKER_ENABLED", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 20, cfg.UndoDepth)
	assert.True(t, cfg.BreakerEnabled)
}

func TestLoad_RejectsInvalidConfiguration(t *testing.T) {
	clearEnvVars()
	defer clearEnvVars()

	os.Setenv("SCHOOLDESK_API_URL", "not a url")
	os.Setenv("APP_ENV", "staging")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "APIURL")
	assert.Contains(t, err.Error(), "AppEnv")
}

func TestLoad_OAuthClientCredentials(t *testing.T) {
	t.Run("scopes are split on commas", func(t *testing.T) {
		clearEnvVars()
		defer clearEnvVars()

		os.Setenv("SCHOOLDESK_OAUTH_TOKEN_URL", "https://auth.example.org/token")
		os.Setenv("SCHOOLDESK_OAUTH_CLIENT_ID", "desk")
		os.Setenv("SCHOOLDESK_OAUTH_SCOPES", "academics, attendance,,")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "desk", cfg.OAuthClientID)
		assert.Equal(t, []string{"academics", "attendance"}, cfg.OAuthScopes)
	})

	t.Run("token url requires a client id", func(t *testing.T) {
		clearEnvVars()
		defer clearEnvVars()

		os.Setenv("SCHOOLDESK_OAUTH_TOKEN_URL", "https://auth.example.org/token")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "OAuthClientID")
	})
}
