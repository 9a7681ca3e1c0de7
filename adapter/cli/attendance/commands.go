package attendance

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	"github.com/felixgeelhaar/schooldesk/internal/attendance/domain"
	"github.com/spf13/cobra"
)

var recordsEntry int64

var sheetCmd = &cobra.Command{
	Use:   "sheet",
	Short: "Show the attendance sheet",
	Long: `Show students against the sessions of the day.

Examples:
  schooldesk attendance sheet --class 4
  schooldesk attendance sheet --class 4 --date 2025-03-14 --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		engine, err := loadEngine(cmd.Context(), out)
		if err != nil {
			return err
		}
		if jsonOutput {
			sheet := engine.Sheet()
			sheet.Records = engine.Records()
			return cli.PrintJSON(out, sheet)
		}
		printSheet(out, engine)
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <student-id> <session-id>",
	Short: "Mark a student absent, or clear the mark",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseCell(args[0], args[1])
		if err != nil {
			return err
		}
		engine, err := loadEngine(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := engine.Toggle(cmd.Context(), key); err != nil {
			return fmt.Errorf("failed to toggle %s: %w", key, err)
		}
		rec, ok := engine.Cell(key)
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, mark(rec, ok))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <student-id> <session-id> <status>",
	Short: "Change the status of a recorded absence",
	Long: `Change the status of an existing record to ABSENT, LATE, EXCUSED or PRESENT.

Examples:
  schooldesk attendance set 31 14 late --class 4`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := parseCell(args[0], args[1])
		if err != nil {
			return err
		}
		status, err := domain.ParseStatus(args[2])
		if err != nil {
			return err
		}
		engine, err := loadEngine(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if err := engine.SetStatus(cmd.Context(), key, status); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", key, status)
		return nil
	},
}

var absentAllCmd = &cobra.Command{
	Use:   "absent-all <session-id>",
	Short: "Mark every unmarked student absent for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entryID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q", args[0])
		}
		engine, err := loadEngine(cmd.Context(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		result, err := engine.BulkMarkAbsent(cmd.Context(), entryID)
		if err != nil {
			return err
		}
		if len(result.Failed) > 0 {
			return fmt.Errorf("%d absence(s) not saved", len(result.Failed))
		}
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List saved attendance records for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.AttendanceRecords == nil {
			return cli.ErrNotInitialized
		}
		records, err := app.AttendanceRecords.ListRecords(cmd.Context(), day(), recordsEntry)
		if err != nil {
			return fmt.Errorf("failed to list records: %w", err)
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			return cli.PrintJSON(out, records)
		}
		if len(records) == 0 {
			fmt.Fprintln(out, "No records.")
			return nil
		}
		cli.Header(out, "Records %s (%d)", day(), len(records))
		for _, r := range records {
			fmt.Fprintf(out, "  %-8s student %-6d session %-6d %s\n", r.ID, r.Student, r.ScheduleEntry, r.Status)
		}
		return nil
	},
}

func init() {
	recordsCmd.Flags().Int64Var(&recordsEntry, "session", 0, "only this session id")
}
