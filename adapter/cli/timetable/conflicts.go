package timetable

import (
	"fmt"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	"github.com/spf13/cobra"
)

var resolvePersist bool

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Show scheduling conflicts reported by the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Timetable == nil {
			return cli.ErrNotInitialized
		}
		report, err := app.Timetable.CheckConflicts(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch conflicts: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Conflicts: %d\n", len(report.Operations))
		fmt.Fprintln(out, report.Pretty())
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Propose or apply automatic conflict resolutions",
	Long: `Ask the server to resolve scheduling conflicts.

Without --persist the proposed resolutions are only shown.

Examples:
  schooldesk timetable resolve
  schooldesk timetable resolve --persist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Timetable == nil {
			return cli.ErrNotInitialized
		}
		report, err := app.Timetable.ResolveConflicts(cmd.Context(), !resolvePersist, resolvePersist)
		if err != nil {
			return fmt.Errorf("failed to resolve conflicts: %w", err)
		}
		title := "Proposed resolutions"
		if resolvePersist {
			title = "Resolutions"
		}
		out := cmd.OutOrStdout()
		printReport(out, title, report)
		if !jsonOutput {
			fmt.Fprintln(out, report.Pretty())
		}
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolvePersist, "persist", false, "save the resolutions")
}
