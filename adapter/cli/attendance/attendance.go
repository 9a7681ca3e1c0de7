package attendance

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	attendanceApp "github.com/felixgeelhaar/schooldesk/internal/attendance/application"
	"github.com/felixgeelhaar/schooldesk/internal/attendance/domain"
	"github.com/spf13/cobra"
)

var (
	classID    string
	date       string
	jsonOutput bool
)

// Cmd is the attendance command group
var Cmd = &cobra.Command{
	Use:   "attendance",
	Short: "Record absences",
	Long: `Show and edit the attendance sheet of a class for one day.

Each change is shown at once and saved in the background; a change the
server refuses is rolled back.`,
}

func init() {
	Cmd.PersistentFlags().StringVar(&classID, "class", "", "school class id")
	Cmd.PersistentFlags().StringVar(&date, "date", "", "day as YYYY-MM-DD (defaults to today)")
	Cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	Cmd.AddCommand(sheetCmd)
	Cmd.AddCommand(toggleCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(absentAllCmd)
	Cmd.AddCommand(recordsCmd)
	Cmd.AddCommand(editCmd)
}

func day() string {
	if date != "" {
		return date
	}
	return time.Now().Format(time.DateOnly)
}

// writerNotifier prints engine notifications on the command output.
func writerNotifier(w io.Writer) attendanceApp.Notifier {
	return attendanceApp.NotifierFunc(func(level attendanceApp.Level, message string) {
		if level == attendanceApp.LevelError {
			fmt.Fprintf(w, "! %s\n", message)
			return
		}
		fmt.Fprintln(w, message)
	})
}

func loadEngine(ctx context.Context, out io.Writer) (*attendanceApp.Engine, error) {
	app := cli.GetApp()
	if app == nil || app.Attendance == nil {
		return nil, cli.ErrNotInitialized
	}
	if classID == "" {
		return nil, fmt.Errorf("--class is required")
	}
	engine := app.Attendance(writerNotifier(out))
	if err := engine.Load(ctx, classID, day()); err != nil {
		return nil, fmt.Errorf("failed to load attendance sheet: %w", err)
	}
	return engine, nil
}

func parseCell(student, entry string) (domain.CellKey, error) {
	s, err := strconv.ParseInt(student, 10, 64)
	if err != nil {
		return domain.CellKey{}, fmt.Errorf("invalid student id %q", student)
	}
	e, err := strconv.ParseInt(entry, 10, 64)
	if err != nil {
		return domain.CellKey{}, fmt.Errorf("invalid session id %q", entry)
	}
	return domain.CellKey{StudentID: s, EntryID: e}, nil
}

var statusMarks = map[domain.Status]string{
	domain.StatusAbsent:  "A",
	domain.StatusLate:    "R",
	domain.StatusExcused: "E",
	domain.StatusPresent: "P",
}

func mark(rec domain.Record, ok bool) string {
	if !ok {
		return "."
	}
	m := statusMarks[rec.Status]
	if m == "" {
		m = "?"
	}
	if rec.Pending() {
		m += "*"
	}
	return m
}

func printSheet(w io.Writer, engine *attendanceApp.Engine) {
	sheet := engine.Sheet()
	cli.Header(w, "Attendance (class %s, %s)", sheet.ClassID, sheet.Date)
	if len(sheet.Sessions) == 0 {
		fmt.Fprintln(w, "No sessions scheduled.")
		return
	}
	for _, s := range sheet.Sessions {
		fmt.Fprintf(w, "  #%d %s-%s %s\n", s.ID, s.StartTime, s.EndTime, s.SubjectName)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  %-6s %-24s", "id", "student")
	for _, s := range sheet.Sessions {
		fmt.Fprintf(w, " %5s", "#"+strconv.FormatInt(s.ID, 10))
	}
	fmt.Fprintln(w)
	for _, st := range sheet.Students {
		fmt.Fprintf(w, "  %-6d %-24s", st.ID, st.Name())
		for _, s := range sheet.Sessions {
			rec, ok := engine.Cell(domain.CellKey{StudentID: st.ID, EntryID: s.ID})
			fmt.Fprintf(w, " %5s", mark(rec, ok))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A absent  R late  E excused  P present  * saving")
}
