package domain

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownEntry = errors.New("schedule entry not found")
	ErrUnknownSlot  = errors.New("slot not found")
	ErrNotInGrid    = errors.New("schedule entry is not placed in the grid")
	ErrNotInHolding = errors.New("schedule entry is not in the holding pool")
)

// Action is the kind of a staged operation.
type Action string

const (
	ActionMove         Action = "move"
	ActionSuspend      Action = "suspend"
	ActionMoveFromHold Action = "move_from_hold"
)

// StagedOperation is a slot change not yet sent to the server. FromSlotIdx
// is the slot the entry had when the session was loaded.
type StagedOperation struct {
	EntryID     int64  `json:"entry_id"`
	FromSlotIdx *int   `json:"from_slot_idx"`
	ToSlotIdx   *int   `json:"to_slot_idx"`
	Action      Action `json:"action"`
}

func (op StagedOperation) String() string {
	return fmt.Sprintf("%s #%d %s -> %s", op.Action, op.EntryID, formatIdx(op.FromSlotIdx), formatIdx(op.ToSlotIdx))
}

// Origin records the slot a held entry left.
type Origin struct {
	SlotIdx int    `json:"slot_idx"`
	Label   string `json:"label"`
}

// HoldingCard is an entry detached from the grid. Origin is nil when the
// entry never had a slot.
type HoldingCard struct {
	Entry  ScheduleEntry `json:"entry"`
	Origin *Origin       `json:"origin"`
}

// Grid maps a slot index to the entry occupying it.
type Grid map[int]ScheduleEntry

// Indices returns the occupied slot indices in ascending order.
func (g Grid) Indices() []int {
	idx := make([]int, 0, len(g))
	for k := range g {
		idx = append(idx, k)
	}
	sort.Ints(idx)
	return idx
}

// SlotOf returns the slot holding entryID.
func (g Grid) SlotOf(entryID int64) (int, bool) {
	for idx, entry := range g {
		if entry.ID == entryID {
			return idx, true
		}
	}
	return 0, false
}

func (g Grid) clone() Grid {
	out := make(Grid, len(g))
	for k, v := range g {
		out[k] = v
	}
	return out
}

func formatIdx(idx *int) string {
	if idx == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *idx)
}

func sameIdx(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
