package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"github.com/spf13/cobra"
)

var healthJSON bool

// healthReport is the --json output: the checks plus what this process
// recorded while running them.
type healthReport struct {
	observability.OverallHealth
	Metrics *observability.MetricsSnapshot `json:"metrics,omitempty"`
}

var healthCmd = &cobra.Command{
	Use:   "health [check]",
	Short: "Check that the backend is reachable",
	Long: `Run every registered health check, or only the named one.

With --json the output also carries the counters and gauges recorded
during the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := GetApp()
		if app == nil || app.Health == nil {
			return ErrNotInitialized
		}

		var overall observability.OverallHealth
		if len(args) == 1 {
			result, ok := app.Health.CheckOne(cmd.Context(), args[0])
			if !ok {
				return fmt.Errorf("unknown health check %q", args[0])
			}
			overall = observability.OverallHealth{
				Status:    result.Status,
				Timestamp: time.Now(),
				Checks:    map[string]observability.HealthCheckResult{args[0]: result},
			}
		} else {
			overall = app.Health.GetOverallHealth(cmd.Context())
		}

		if healthJSON {
			report := healthReport{OverallHealth: overall}
			if app.Metrics != nil {
				snap := app.Metrics.Snapshot()
				report.Metrics = &snap
			}
			if err := PrintJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s\n", overall.Status)
			names := make([]string, 0, len(overall.Checks))
			for name := range overall.Checks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				check := overall.Checks[name]
				fmt.Fprintf(out, "  %-10s %-10s %s\n", name, check.Status, check.Message)
			}
		}
		if overall.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("backend unhealthy")
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().BoolVar(&healthJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(healthCmd)
}
