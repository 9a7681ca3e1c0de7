package timetable

import (
	"context"
	"fmt"
	"io"

	"github.com/felixgeelhaar/schooldesk/adapter/cli"
	timetableApp "github.com/felixgeelhaar/schooldesk/internal/timetable/application"
	"github.com/felixgeelhaar/schooldesk/internal/timetable/domain"
	"github.com/spf13/cobra"
)

var (
	classID    string
	jsonOutput bool
)

// Cmd is the timetable command group
var Cmd = &cobra.Command{
	Use:     "timetable",
	Aliases: []string{"tt"},
	Short:   "Edit the class timetable",
	Long: `Show and rearrange a class timetable.

Moves are staged locally, checked by the server as one batch, then
applied for real or simulated.`,
}

func init() {
	Cmd.PersistentFlags().StringVar(&classID, "class", "", "school class id (defaults to SCHOOLDESK_CLASS_ID)")
	Cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	Cmd.AddCommand(showCmd)
	Cmd.AddCommand(classesCmd)
	Cmd.AddCommand(editCmd)
	Cmd.AddCommand(validateCmd)
	Cmd.AddCommand(applyCmd)
	Cmd.AddCommand(conflictsCmd)
	Cmd.AddCommand(resolveCmd)
	Cmd.AddCommand(entryCmd)
}

func loadEditor(ctx context.Context) (*timetableApp.Editor, error) {
	app := cli.GetApp()
	if app == nil || app.Timetable == nil {
		return nil, cli.ErrNotInitialized
	}
	editor := app.Timetable
	if classID != "" {
		editor.SetClass(classID)
	}
	if err := editor.LoadInitial(ctx); err != nil {
		return nil, fmt.Errorf("failed to load timetable: %w", err)
	}
	return editor, nil
}

func printBoard(w io.Writer, snap timetableApp.Snapshot) {
	class := snap.ClassID
	if class == "" {
		class = "toutes"
	}
	cli.Header(w, "Timetable (class %s, %s)", class, snap.State)
	for _, warning := range snap.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}

	labels := make(map[int]string, len(snap.Slots))
	for _, s := range snap.Slots {
		labels[s.Idx] = s.DisplayLabel()
	}
	if len(snap.Slots) > 0 {
		for _, s := range snap.Slots {
			title := "."
			if e, ok := snap.Grid[s.Idx]; ok {
				title = e.Title()
			}
			fmt.Fprintf(w, "  [%3d] %-20s %s\n", s.Idx, s.DisplayLabel(), title)
		}
	} else {
		for _, idx := range snap.Grid.Indices() {
			fmt.Fprintf(w, "  [%3d] %s\n", idx, snap.Grid[idx].Title())
		}
	}

	if len(snap.Holding) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Holding:")
		for _, card := range snap.Holding {
			origin := "no slot"
			if card.Origin != nil {
				origin = "from " + card.Origin.Label
			}
			fmt.Fprintf(w, "  %s (%s)\n", card.Entry.Title(), origin)
		}
	}
	printOps(w, snap.Ops)
}

func printOps(w io.Writer, ops []domain.StagedOperation) {
	if len(ops) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Staged (%d):\n", len(ops))
	for i, op := range ops {
		fmt.Fprintf(w, "  %d. %s\n", i+1, op)
	}
}

func printReport(w io.Writer, title string, report domain.Report) {
	verdict := "ok"
	if report.Failed() {
		verdict = "failed"
	}
	fmt.Fprintf(w, "%s: %s\n", title, verdict)
	if report.Error != "" {
		fmt.Fprintf(w, "  %s\n", report.Error)
	}
	for _, op := range report.Operations {
		if op.Status != domain.OperationStatusError {
			continue
		}
		entry := "-"
		if op.EntryID != nil {
			entry = fmt.Sprintf("#%d", *op.EntryID)
		}
		fmt.Fprintf(w, "  %s %s\n", entry, op.Message)
	}
	if jsonOutput {
		fmt.Fprintln(w, report.Pretty())
	}
}
