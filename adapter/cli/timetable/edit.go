package timetable

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	timetableApp "github.com/felixgeelhaar/schooldesk/internal/timetable/application"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
	"github.com/spf13/cobra"
)

const editHelp = `Commands:
  show                  print the grid
  info <entry>          show an entry as loaded
  move <entry> <slot>   move an entry (from the grid or holding)
  place <entry> <slot>  place a held entry
  suspend <entry>       send an entry to holding
  revert <entry>        undo the change of a held entry
  undo                  drop the last staged change
  ops                   list staged changes
  validate              check the staged changes on the server
  simulate              run the batch without saving
  apply                 save the staged changes
  conflicts             show server conflicts
  resolve [persist]     propose (or save) conflict resolutions
  quit                  leave; unsaved changes are lost`

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Rearrange the timetable interactively",
	Long: `Open an editing session on the timetable of a class.

Changes stay local until "apply". Type "help" for the command list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := loadEditor(cmd.Context())
		if err != nil {
			return err
		}
		s := &session{editor: editor, out: cmd.OutOrStdout()}
		printBoard(s.out, editor.Snapshot())
		return s.run(observability.WithSessionID(cmd.Context(), ""), cmd.InOrStdin())
	},
}

type session struct {
	editor *timetableApp.Editor
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
			fmt.Fprintf(s.out, "error: %s\n", api.UserMessage(err))
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (s *session) exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "quit", "exit", "q":
		if ops := s.editor.Snapshot().Ops; len(ops) > 0 {
			fmt.Fprintf(s.out, "%d staged change(s) discarded.\n", len(ops))
		}
		return true, nil
	case "help", "?":
		fmt.Fprintln(s.out, editHelp)
	case "show":
		printBoard(s.out, s.editor.Snapshot())
	case "info":
		id, err := entryArg(args)
		if err != nil {
			return false, err
		}
		e, ok := s.editor.Entry(id)
		if !ok {
			return false, fmt.Errorf("no entry #%d", id)
		}
		fmt.Fprintf(s.out, "%s\n  %s %s-%s\n", e.Title(), e.Weekday, e.StartTime, e.EndTime)
		if e.Room != nil {
			fmt.Fprintf(s.out, "  room %s\n", *e.Room)
		}
		if slot, ok := s.editor.Snapshot().Grid.SlotOf(id); ok {
			fmt.Fprintf(s.out, "  now at slot %d\n", slot)
		} else {
			fmt.Fprintln(s.out, "  in holding")
		}
	case "ops":
		ops := s.editor.Snapshot().Ops
		if len(ops) == 0 {
			fmt.Fprintln(s.out, "Nothing staged.")
		}
		printOps(s.out, ops)
	case "move", "place":
		entry, slot, err := entryAndSlot(args)
		if err != nil {
			return false, err
		}
		if verb == "place" {
			if err := s.editor.PlaceFromHolding(entry, slot); err != nil {
				return false, err
			}
		} else {
			changed, err := s.editor.DropOnSlot(entry, slot)
			if err != nil {
				return false, err
			}
			if !changed {
				fmt.Fprintln(s.out, "Already there.")
				return false, nil
			}
		}
		s.staged()
	case "suspend":
		entry, err := entryArg(args)
		if err != nil {
			return false, err
		}
		if err := s.editor.Suspend(entry); err != nil {
			return false, err
		}
		s.staged()
	case "revert":
		entry, err := entryArg(args)
		if err != nil {
			return false, err
		}
		result, err := s.editor.Revert(entry)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(s.out, "#%d %s.\n", entry, result)
		s.staged()
	case "undo":
		op, ok, err := s.editor.UndoLastOp()
		if err != nil {
			return false, err
		}
		if !ok {
			fmt.Fprintln(s.out, "Nothing to undo.")
			return false, nil
		}
		fmt.Fprintf(s.out, "Undone: %s\n", op)
	case "validate":
		report, err := s.editor.Validate(ctx)
		if err != nil {
			return false, err
		}
		printReport(s.out, "Validation", report)
	case "simulate", "apply":
		persist := verb == "apply"
		report, err := s.editor.Apply(ctx, persist)
		if report.Raw != nil || report.Error != "" {
			title := "Simulation"
			if persist {
				title = "Apply"
			}
			printReport(s.out, title, report)
		}
		if err != nil {
			return false, err
		}
		if persist && !report.Failed() {
			printBoard(s.out, s.editor.Snapshot())
		}
	case "conflicts":
		report, err := s.editor.CheckConflicts(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, report.Pretty())
	case "resolve":
		persist := len(args) > 0 && args[0] == "persist"
		report, err := s.editor.ResolveConflicts(ctx, !persist, persist)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(s.out, report.Pretty())
	default:
		return false, fmt.Errorf("unknown command %q, type help", verb)
	}
	return false, nil
}

func (s *session) staged() {
	fmt.Fprintf(s.out, "%d change(s) staged.\n", len(s.editor.Snapshot().Ops))
}

func entryArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: <entry>")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid entry id %q", args[0])
	}
	return id, nil
}

func entryAndSlot(args []string) (int64, int, error) {
	if len(args) != 2 {
		return 0, 0, errors.New("usage: <entry> <slot>")
	}
	p, err := parsePlacement(args[0] + ":" + args[1])
	if err != nil {
		return 0, 0, err
	}
	return p.entry, p.slot, nil
}
