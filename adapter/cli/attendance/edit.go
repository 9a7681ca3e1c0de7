package attendance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	attendanceApp "github.com/felixgeelhaar/schooldesk/internal/attendance/application"
	"github.com/felixgeelhaar/schooldesk/internal/attendance/domain"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"github.com/spf13/cobra"
)

const editHelp = `Commands:
  show                          print the sheet
  toggle <student> <session>    mark absent, or clear
  set <student> <session> <st>  change status (absent, late, excused, present)
  absent <session>              mark every unmarked student absent
  undo                          reverse the last change
  reload                        fetch the sheet again
  quit                          leave`

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit the attendance sheet interactively",
	Long: `Open the attendance sheet of a class and record absences.

Every change is saved as it is made. Type "help" for the command list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		engine, err := loadEngine(cmd.Context(), out)
		if err != nil {
			return err
		}
		s := &session{engine: engine, out: out}
		printSheet(out, engine)
		return s.run(observability.WithSessionID(cmd.Context(), ""), cmd.InOrStdin())
	},
}

type session struct {
	engine *attendanceApp.Engine
	out    io.Writer
}

func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintf(s.out, "error: %s\n", err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// exec runs one line. Server refusals are already reported by the
// notifier, so only local errors are returned.
func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit", "q":
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, editHelp)
	case "show":
		printSheet(s.out, s.engine)
		if action, ok := s.engine.PeekUndo(); ok {
			fmt.Fprintf(s.out, "Undo (%d): %s\n", s.engine.UndoDepth(), action)
		}
	case "toggle", "t":
		if len(args) != 2 {
			return false, errors.New("usage: toggle <student> <session>")
		}
		key, err := parseCell(args[0], args[1])
		if err != nil {
			return false, err
		}
		if err := s.engine.Toggle(ctx, key); err != nil {
			return false, localError(err)
		}
		rec, ok := s.engine.Cell(key)
		fmt.Fprintf(s.out, "%s: %s\n", key, mark(rec, ok))
	case "set":
		if len(args) != 3 {
			return false, errors.New("usage: set <student> <session> <status>")
		}
		key, err := parseCell(args[0], args[1])
		if err != nil {
			return false, err
		}
		status, err := domain.ParseStatus(args[2])
		if err != nil {
			return false, err
		}
		if err := s.engine.SetStatus(ctx, key, status); err != nil {
			return false, localError(err)
		}
		rec, ok := s.engine.Cell(key)
		fmt.Fprintf(s.out, "%s: %s\n", key, mark(rec, ok))
	case "absent":
		if len(args) != 1 {
			return false, errors.New("usage: absent <session>")
		}
		entryID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return false, fmt.Errorf("invalid session id %q", args[0])
		}
		if _, err := s.engine.BulkMarkAbsent(ctx, entryID); err != nil {
			return false, err
		}
	case "undo", "u":
		action, err := s.engine.Undo(ctx)
		if errors.Is(err, attendanceApp.ErrNothingToUndo) {
			fmt.Fprintln(s.out, "Nothing to undo.")
			return false, nil
		}
		if err != nil && action.Kind == domain.UndoBulkCreate {
			return false, err
		}
		if err != nil {
			return false, localError(err)
		}
		fmt.Fprintf(s.out, "Undone: %s\n", action)
	case "reload":
		sheet := s.engine.Sheet()
		if err := s.engine.Load(ctx, sheet.ClassID, sheet.Date); err != nil {
			return false, err
		}
		printSheet(s.out, s.engine)
	default:
		return false, fmt.Errorf("unknown command %q, type help", verb)
	}
	return false, nil
}

// localError drops errors the notifier has already shown.
func localError(err error) error {
	switch {
	case errors.Is(err, attendanceApp.ErrCellBusy),
		errors.Is(err, attendanceApp.ErrNoRecord),
		errors.Is(err, attendanceApp.ErrNotLoaded),
		errors.Is(err, domain.ErrInvalidStatus):
		return err
	}
	return nil
}
