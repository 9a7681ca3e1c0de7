package timetable

import (
	"fmt"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the timetable grid",
	Long: `Show the timetable of a class on the slot grid.

Entries without a slot, or whose slot is taken, are listed under Holding.

Examples:
  schooldesk timetable show --class 4
  schooldesk timetable show --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := loadEditor(cmd.Context())
		if err != nil {
			return err
		}
		snap := editor.Snapshot()
		if jsonOutput {
			return cli.PrintJSON(cmd.OutOrStdout(), snap)
		}
		printBoard(cmd.OutOrStdout(), snap)
		return nil
	},
}

var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List school classes",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.TimetableEntries == nil {
			return cli.ErrNotInitialized
		}
		classes, err := app.TimetableEntries.ListClasses(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list classes: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.PrintJSON(out, classes)
		}
		if len(classes) == 0 {
			fmt.Fprintln(out, "No classes found.")
			return nil
		}
		cli.Header(out, "Classes (%d)", len(classes))
		for _, c := range classes {
			if c.Level != "" {
				fmt.Fprintf(out, "  %4d  %s (%s)\n", c.ID, c.Name, c.Level)
				continue
			}
			fmt.Fprintf(out, "  %4d  %s\n", c.ID, c.Name)
		}
		return nil
	},
}
