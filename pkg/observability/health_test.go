package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthRegistry_Check(t *testing.T) {
	registry := NewHealthRegistry()
	registry.Register("slots", EndpointHealthChecker("slots", 0, func(ctx context.Context) error {
		return nil
	}))
	registry.Register("timetable", EndpointHealthChecker("timetable", 0, func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	health := registry.GetOverallHealth(context.Background())

	require.Len(t, health.Checks, 2)
	assert.Equal(t, HealthStatusHealthy, health.Checks["slots"].Status)
	assert.Equal(t, HealthStatusUnhealthy, health.Checks["timetable"].Status)
	assert.Contains(t, health.Checks["timetable"].Message, "connection refused")
	assert.Equal(t, HealthStatusUnhealthy, health.Status)
}

func TestEndpointHealthChecker_Slow(t *testing.T) {
	checker := EndpointHealthChecker("slots", time.Millisecond, func(ctx context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	result := checker(context.Background())
	assert.Equal(t, HealthStatusDegraded, result.Status)
}

func TestHealthRegistry_CheckOne(t *testing.T) {
	registry := NewHealthRegistry()
	registry.Register("slots", EndpointHealthChecker("slots", 0, func(ctx context.Context) error { return nil }))

	result, ok := registry.CheckOne(context.Background(), "slots")
	require.True(t, ok)
	assert.Equal(t, HealthStatusHealthy, result.Status)

	_, ok = registry.CheckOne(context.Background(), "missing")
	assert.False(t, ok)
	assert.Equal(t, HealthStatusHealthy, registry.OverallStatus(), "CheckOne does not touch the cached results")
}
