package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	timetableApp "github.com/felixgeelhaar/schooldesk/internal/timetable/application"
	"github.com/spf13/cobra"
)

var (
	moveFlags    []string
	placeFlags   []string
	suspendFlags []int64
	simulate     bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a set of moves without applying them",
	Long: `Stage moves from flags and ask the server to validate them as one batch.

Suspensions are staged first, then moves, then placements from holding.

Examples:
  schooldesk timetable validate --move 14:12
  schooldesk timetable validate --suspend 9 --move 14:3`,
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := stageFromFlags(cmd)
		if err != nil {
			return err
		}
		report, err := editor.Validate(cmd.Context())
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		printReport(cmd.OutOrStdout(), "Validation", report)
		return nil
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply a set of moves",
	Long: `Stage moves from flags and apply them in one batch.

With --simulate the server runs the batch without saving it.

Examples:
  schooldesk timetable apply --move 14:12
  schooldesk timetable apply --suspend 9 --simulate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		editor, err := stageFromFlags(cmd)
		if err != nil {
			return err
		}
		report, err := editor.Apply(cmd.Context(), !simulate)
		if err != nil {
			return fmt.Errorf("apply failed: %w", err)
		}
		title := "Apply"
		if simulate {
			title = "Simulation"
		}
		printReport(cmd.OutOrStdout(), title, report)
		if report.Failed() {
			return errors.New("batch refused by the server")
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, applyCmd} {
		c.Flags().StringArrayVar(&moveFlags, "move", nil, "move ENTRY:SLOT (repeatable)")
		c.Flags().StringArrayVar(&placeFlags, "place", nil, "place a held ENTRY:SLOT (repeatable)")
		c.Flags().Int64SliceVar(&suspendFlags, "suspend", nil, "send ENTRY to holding (repeatable)")
	}
	applyCmd.Flags().BoolVar(&simulate, "simulate", false, "run the batch without saving")
}

func stageFromFlags(cmd *cobra.Command) (*timetableApp.Editor, error) {
	if len(moveFlags)+len(placeFlags)+len(suspendFlags) == 0 {
		return nil, errors.New("nothing to stage: use --move, --place or --suspend")
	}
	moves, err := parsePairs(moveFlags)
	if err != nil {
		return nil, err
	}
	places, err := parsePairs(placeFlags)
	if err != nil {
		return nil, err
	}

	editor, err := loadEditor(cmd.Context())
	if err != nil {
		return nil, err
	}
	for _, id := range suspendFlags {
		if err := editor.Suspend(id); err != nil {
			return nil, fmt.Errorf("suspend #%d: %w", id, err)
		}
	}
	for _, m := range moves {
		if _, err := editor.DropOnSlot(m.entry, m.slot); err != nil {
			return nil, fmt.Errorf("move #%d: %w", m.entry, err)
		}
	}
	for _, p := range places {
		if err := editor.PlaceFromHolding(p.entry, p.slot); err != nil {
			return nil, fmt.Errorf("place #%d: %w", p.entry, err)
		}
	}
	printOps(cmd.OutOrStdout(), editor.Snapshot().Ops)
	return editor, nil
}

type placement struct {
	entry int64
	slot  int
}

func parsePairs(raw []string) ([]placement, error) {
	out := make([]placement, 0, len(raw))
	for _, r := range raw {
		p, err := parsePlacement(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// parsePlacement reads "ENTRY:SLOT".
func parsePlacement(raw string) (placement, error) {
	entryPart, slotPart, ok := strings.Cut(raw, ":")
	if !ok {
		return placement{}, fmt.Errorf("invalid placement %q: want ENTRY:SLOT", raw)
	}
	entry, err := strconv.ParseInt(strings.TrimSpace(entryPart), 10, 64)
	if err != nil {
		return placement{}, fmt.Errorf("invalid entry id %q", entryPart)
	}
	slot, err := strconv.Atoi(strings.TrimSpace(slotPart))
	if err != nil || slot < 0 {
		return placement{}, fmt.Errorf("invalid slot %q", slotPart)
	}
	return placement{entry: entry, slot: slot}, nil
}
