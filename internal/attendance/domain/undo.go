package domain

import "fmt"

// UndoKind is the kind of change an undo entry reverses.
type UndoKind string

const (
	UndoCreate     UndoKind = "create"
	UndoDelete     UndoKind = "delete"
	UndoStatus     UndoKind = "status"
	UndoBulkCreate UndoKind = "bulk_create"
)

// UndoAction records an applied change so it can be reversed.
//
// create: Record is the created record. delete: Record is the removed
// record. status: Record holds the new status, PrevStatus the old one.
// bulk_create: Keys lists every touched cell.
type UndoAction struct {
	Kind       UndoKind
	Key        CellKey
	Record     Record
	PrevStatus Status
	Keys       []CellKey
}

// Cells returns every cell the action touches.
func (a UndoAction) Cells() []CellKey {
	if a.Kind == UndoBulkCreate {
		return a.Keys
	}
	return []CellKey{a.Key}
}

func (a UndoAction) String() string {
	switch a.Kind {
	case UndoCreate:
		return fmt.Sprintf("création (%s)", a.Key)
	case UndoDelete:
		return fmt.Sprintf("suppression (%s)", a.Key)
	case UndoStatus:
		return fmt.Sprintf("statut %s -> %s (%s)", a.PrevStatus, a.Record.Status, a.Key)
	case UndoBulkCreate:
		return fmt.Sprintf("absences en masse (%d)", len(a.Keys))
	default:
		return string(a.Kind)
	}
}
