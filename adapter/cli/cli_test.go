package cli

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	var out strings.Builder
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, out.String(), "schooldesk dev")
	assert.Contains(t, out.String(), "commit: none")
}

func TestHealth(t *testing.T) {
	newApp := func(ping func(context.Context) error) *App {
		registry := observability.NewHealthRegistry()
		registry.Register("api", observability.EndpointHealthChecker("api", 0, ping))
		a := NewApp(nil, nil, nil, nil, nil)
		a.SetHealth(registry)
		return a
	}

	t.Run("healthy backend", func(t *testing.T) {
		healthJSON = false
		SetApp(newApp(func(context.Context) error { return nil }))
		defer SetApp(nil)

		var out strings.Builder
		healthCmd.SetContext(context.Background())
		healthCmd.SetOut(&out)
		require.NoError(t, healthCmd.RunE(healthCmd, nil))

		assert.Contains(t, out.String(), "status: healthy")
		assert.Contains(t, out.String(), "api reachable")
	})

	t.Run("unreachable backend fails", func(t *testing.T) {
		healthJSON = true
		defer func() { healthJSON = false }()
		SetApp(newApp(func(context.Context) error { return errors.New("refused") }))
		defer SetApp(nil)

		var out strings.Builder
		healthCmd.SetContext(context.Background())
		healthCmd.SetOut(&out)
		err := healthCmd.RunE(healthCmd, nil)

		require.Error(t, err)
		assert.Contains(t, out.String(), `"status": "unhealthy"`)
	})

	t.Run("single check", func(t *testing.T) {
		healthJSON = false
		registry := observability.NewHealthRegistry()
		registry.Register("api", observability.EndpointHealthChecker("api", 0, func(context.Context) error { return nil }))
		registry.Register("auth", observability.EndpointHealthChecker("auth", 0, func(context.Context) error { return errors.New("refused") }))
		a := NewApp(nil, nil, nil, nil, nil)
		a.SetHealth(registry)
		SetApp(a)
		defer SetApp(nil)

		var out strings.Builder
		healthCmd.SetContext(context.Background())
		healthCmd.SetOut(&out)
		require.NoError(t, healthCmd.RunE(healthCmd, []string{"api"}))
		assert.Contains(t, out.String(), "api reachable")
		assert.NotContains(t, out.String(), "auth")

		err := healthCmd.RunE(healthCmd, []string{"grades"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown health check "grades"`)
	})

	t.Run("json carries recorded metrics", func(t *testing.T) {
		healthJSON = true
		defer func() { healthJSON = false }()
		metrics := observability.NewInMemoryMetrics()
		a := newApp(func(context.Context) error {
			metrics.Counter(observability.MetricHTTPRequests, 1, observability.T("method", "GET"))
			return nil
		})
		a.SetMetrics(metrics)
		SetApp(a)
		defer SetApp(nil)

		var out strings.Builder
		healthCmd.SetContext(context.Background())
		healthCmd.SetOut(&out)
		require.NoError(t, healthCmd.RunE(healthCmd, nil))

		var report struct {
			Status  string `json:"status"`
			Metrics struct {
				Counters map[string]int64 `json:"counters"`
			} `json:"metrics"`
		}
		require.NoError(t, json.Unmarshal([]byte(out.String()), &report))
		assert.Equal(t, "healthy", report.Status)
		assert.Equal(t, int64(1), report.Metrics.Counters[observability.MetricHTTPRequests+":method=GET"])
	})

	t.Run("without app", func(t *testing.T) {
		SetApp(nil)
		healthCmd.SetContext(context.Background())
		assert.ErrorIs(t, healthCmd.RunE(healthCmd, nil), ErrNotInitialized)
	})
}

func TestRootCorrelationID(t *testing.T) {
	cmd := rootCmd
	cmd.SetContext(context.Background())
	cmd.PersistentPreRun(cmd, nil)

	assert.NotEmpty(t, observability.CorrelationIDFromContext(cmd.Context()))
	_, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
	assert.True(t, ok)
}
