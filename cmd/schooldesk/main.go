package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	"github.com/felixgeelhaar/schooldesk/adapter/cli/attendance"
	"github.com/felixgeelhaar/schooldesk/adapter/cli/grades"
	"github.com/felixgeelhaar/schooldesk/adapter/cli/timetable"
	"github.com/felixgeelhaar/schooldesk/internal/app"
	"github.com/felixgeelhaar/schooldesk/pkg/config"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
)

func main() {
	// Create context with cancellation
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.LoggerFor(cfg.IsProduction(), cfg.LogLevel, cfg.LogFormat, cli.Version, os.Stderr)
	slog.SetDefault(logger)
	cli.SetLogger(logger)

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}

	cliApp := cli.NewApp(
		container.TimetableEditor,
		container.TimetableGateway,
		container.NewAttendanceEngine,
		container.AttendanceGateway,
		container.GradeSheet,
	)
	cliApp.SetHealth(container.Health)
	cliApp.SetMetrics(container.Metrics)
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(timetable.Cmd)
	cli.AddCommand(attendance.Cmd)
	cli.AddCommand(grades.Cmd)

	// Execute CLI
	cli.Execute(ctx)
}
