package timetable

import (
	"fmt"
	"strconv"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	"github.com/felixgeelhaar/schooldesk/internal/timetable/domain"
	"github.com/spf13/cobra"
)

var (
	entrySubject int64
	entryTeacher int64
	entryWeekday int
	entryStart   string
	entryEnd     string
	entryRoom    string
	entryNotes   string
	entrySlot    int
)

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Create, change or delete single schedule entries",
	Long: `Maintain schedule entries directly. These changes are saved at once
and bypass the staged batch.`,
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a schedule entry",
	Long: `Create a schedule entry for the class given by --class.

Examples:
  schooldesk timetable entry add --class 4 --subject 2 --weekday 1 --start 08:00 --end 09:00
  schooldesk timetable entry add --class 4 --subject 2 --weekday 3 --start 10:00 --end 11:00 --slot 12`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := entriesGateway()
		if err != nil {
			return err
		}
		class, err := strconv.ParseInt(classID, 10, 64)
		if err != nil {
			return fmt.Errorf("--class must be a numeric class id")
		}
		in := domain.EntryInput{
			SchoolClass: class,
			Subject:     entrySubject,
			Weekday:     domain.Weekday(entryWeekday),
			StartTime:   entryStart,
			EndTime:     entryEnd,
			Notes:       entryNotes,
		}
		flags := cmd.Flags()
		if flags.Changed("teacher") {
			in.Teacher = &entryTeacher
		}
		if flags.Changed("room") {
			in.Room = &entryRoom
		}
		if flags.Changed("slot") {
			in.SlotIdx = domain.IntPtr(entrySlot)
		}

		created, err := entries.CreateEntry(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("failed to create entry: %w", err)
		}
		return printEntry(cmd, "Entry created", created)
	},
}

var entryUpdateCmd = &cobra.Command{
	Use:   "update <entry-id>",
	Short: "Change fields of a schedule entry",
	Long: `Change only the fields given as flags.

Examples:
  schooldesk timetable entry update 14 --room B12
  schooldesk timetable entry update 14 --start 09:00 --end 10:00`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := entriesGateway()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry ID: %w", err)
		}

		fields := map[string]any{}
		flags := cmd.Flags()
		if flags.Changed("subject") {
			fields["subject"] = entrySubject
		}
		if flags.Changed("teacher") {
			fields["teacher"] = entryTeacher
		}
		if flags.Changed("weekday") {
			fields["weekday"] = entryWeekday
		}
		if flags.Changed("start") {
			fields["start_time"] = entryStart
		}
		if flags.Changed("end") {
			fields["end_time"] = entryEnd
		}
		if flags.Changed("room") {
			fields["room"] = entryRoom
		}
		if flags.Changed("notes") {
			fields["notes"] = entryNotes
		}
		if flags.Changed("slot") {
			fields["slot_idx"] = entrySlot
		}
		if len(fields) == 0 {
			return fmt.Errorf("nothing to update")
		}

		updated, err := entries.UpdateEntry(cmd.Context(), id, fields)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		return printEntry(cmd, "Entry updated", updated)
	},
}

var entryDeleteCmd = &cobra.Command{
	Use:     "delete <entry-id>",
	Short:   "Delete a schedule entry",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := entriesGateway()
		if err != nil {
			return err
		}
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry ID: %w", err)
		}
		if err := entries.DeleteEntry(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Entry #%d deleted.\n", id)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{entryAddCmd, entryUpdateCmd} {
		f := c.Flags()
		f.Int64Var(&entrySubject, "subject", 0, "subject id")
		f.Int64Var(&entryTeacher, "teacher", 0, "teacher id")
		f.IntVar(&entryWeekday, "weekday", 0, "day of week, 1 (Monday) to 6 (Saturday)")
		f.StringVar(&entryStart, "start", "", "start time (HH:MM)")
		f.StringVar(&entryEnd, "end", "", "end time (HH:MM)")
		f.StringVar(&entryRoom, "room", "", "room")
		f.StringVar(&entryNotes, "notes", "", "notes")
		f.IntVar(&entrySlot, "slot", 0, "grid slot index")
	}
	entryCmd.AddCommand(entryAddCmd)
	entryCmd.AddCommand(entryUpdateCmd)
	entryCmd.AddCommand(entryDeleteCmd)
}

func entriesGateway() (cli.TimetableEntries, error) {
	app := cli.GetApp()
	if app == nil || app.TimetableEntries == nil {
		return nil, cli.ErrNotInitialized
	}
	return app.TimetableEntries, nil
}

func printEntry(cmd *cobra.Command, title string, e domain.ScheduleEntry) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		return cli.PrintJSON(out, e)
	}
	cli.Header(out, "%s", title)
	fmt.Fprintf(out, "  %s\n", e.Title())
	fmt.Fprintf(out, "  %s %s-%s\n", e.Weekday, e.StartTime, e.EndTime)
	if e.SlotIdx != nil {
		fmt.Fprintf(out, "  slot %d\n", *e.SlotIdx)
	}
	return nil
}
