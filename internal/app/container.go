package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	attendanceApp "github.com/felixgeelhaar/schooldesk/internal/attendance/application"
	attendanceRest "github.com/felixgeelhaar/schooldesk/internal/attendance/infrastructure/rest"
	gradesApp "github.com/felixgeelhaar/schooldesk/internal/grades/application"
	gradesRest "github.com/felixgeelhaar/schooldesk/internal/grades/infrastructure/rest"
	timetableApp "github.com/felixgeelhaar/schooldesk/internal/timetable/application"
	timetableRest "github.com/felixgeelhaar/schooldesk/internal/timetable/infrastructure/rest"
	"github.com/felixgeelhaar/schooldesk/pkg/config"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"golang.org/x/oauth2/clientcredentials"
)

// slowBackend marks the API as degraded in health checks.
const slowBackend = 2 * time.Second

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// API
	Client *api.Client

	// Gateways
	TimetableGateway  *timetableRest.Gateway
	AttendanceGateway *attendanceRest.Gateway
	GradesGateway     *gradesRest.Gateway

	// Editors
	TimetableEditor *timetableApp.Editor
	GradeSheet      *gradesApp.Sheet
}

// NewContainer creates and wires all dependencies.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.New("configuration required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}

	opts := api.Options{
		BaseURL:     cfg.APIURL,
		Credentials: credentials(ctx, cfg),
		Timeout:     cfg.HTTPTimeout,
		Logger:      logger,
		Metrics:     c.Metrics,
	}
	if cfg.BreakerEnabled {
		breaker := api.DefaultBreakerConfig()
		if cfg.BreakerFailures > 0 {
			breaker.FailureThreshold = uint32(cfg.BreakerFailures)
		}
		if cfg.BreakerOpenTimeout > 0 {
			breaker.OpenTimeout = cfg.BreakerOpenTimeout
		}
		opts.Breaker = &breaker
	}
	c.Client = api.NewClient(opts)

	c.TimetableGateway = timetableRest.NewGateway(c.Client, logger)
	c.AttendanceGateway = attendanceRest.NewGateway(c.Client, logger)
	c.GradesGateway = gradesRest.NewGateway(c.Client, logger)

	c.TimetableEditor = timetableApp.NewEditor(c.TimetableGateway, cfg.ClassID, logger, c.Metrics)
	c.GradeSheet = gradesApp.NewSheet(c.GradesGateway, cfg.MaxGrade, logger, c.Metrics)

	c.Health.Register("api", observability.EndpointHealthChecker("api", slowBackend, func(ctx context.Context) error {
		_, err := c.TimetableGateway.ListSlots(ctx)
		return err
	}))

	logger.Debug("container ready",
		"api_url", cfg.APIURL,
		"breaker", cfg.BreakerEnabled,
		"oauth", cfg.OAuthTokenURL != "",
	)
	return c, nil
}

// NewAttendanceEngine creates an attendance engine reporting to notifier.
// A nil notifier logs notifications.
func (c *Container) NewAttendanceEngine(notifier attendanceApp.Notifier) *attendanceApp.Engine {
	return attendanceApp.NewEngine(c.AttendanceGateway, attendanceApp.Options{
		Logger:    c.Logger,
		Metrics:   c.Metrics,
		Notifier:  notifier,
		UndoDepth: c.Config.UndoDepth,
	})
}

// credentials picks the token source: OAuth2 client credentials, then a
// configured token, then the token environment variable.
func credentials(ctx context.Context, cfg *config.Config) api.CredentialProvider {
	switch {
	case cfg.OAuthTokenURL != "":
		oauth := clientcredentials.Config{
			ClientID:     cfg.OAuthClientID,
			ClientSecret: cfg.OAuthClientSecret,
			TokenURL:     cfg.OAuthTokenURL,
			Scopes:       cfg.OAuthScopes,
		}
		return api.TokenSource(oauth.TokenSource(ctx))
	case cfg.Token != "":
		return api.StaticToken(cfg.Token)
	case cfg.TokenEnvVar != "":
		return api.EnvToken(cfg.TokenEnvVar)
	}
	return nil
}
