package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var logger *slog.Logger

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
	logger        *slog.Logger
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "schooldesk",
	Short: "schooldesk - school timetable, attendance and grades from the terminal",
	Long: `schooldesk edits a school-management backend from the command line.

Timetable changes are staged locally, validated as a batch and applied
(or simulated) in one call. Attendance and grades are saved cell by cell
and shown before the server answers; a refused save is rolled back.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		id := uuid.New()
		info := commandContext{
			correlationID: id,
			startedAt:     time.Now(),
			logger:        observability.LogOperation(logger, cmd.CommandPath(), "correlation_id", id.String()),
		}
		ctx = observability.WithCorrelationID(ctx, id.String())
		cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
		info.logger.Debug("command start")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		observability.LogDuration(cmd.Context(), logger, cmd.CommandPath(), info.startedAt)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// AddCommand adds a command to the root command.
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}
