package domain

import "fmt"

// RevertResult tells where a reverted entry ended up.
type RevertResult int

const (
	// RevertPlaced means the entry went back to its home slot.
	RevertPlaced RevertResult = iota
	// RevertDropped means the home slot was taken, so the card was removed
	// from the holding pool.
	RevertDropped
	// RevertHeld means the entry never had a slot and stays in the pool.
	RevertHeld
)

func (r RevertResult) String() string {
	switch r {
	case RevertPlaced:
		return "placed"
	case RevertDropped:
		return "dropped"
	default:
		return "held"
	}
}

// Board is the local editing state of a timetable: the entries as fetched,
// the live grid/holding projection and the ordered staged operations.
//
// The projection is disposable. The server entry list stays the ground
// truth and is only replaced by loading a new Board. Board is not safe for
// concurrent use.
type Board struct {
	slots    []Slot
	original []ScheduleEntry
	byID     map[int64]ScheduleEntry
	// fetched is the slot_idx the server reported, sent as from_slot_idx.
	fetched map[int64]*int
	// home is where the entry sat in the grid right after loading.
	home map[int64]*int
	proj *projection
	ops  []StagedOperation
}

// NewBoard builds the initial projection: entries with a valid slot_idx go
// to the grid, the rest to the holding pool with a nil origin.
func NewBoard(entries []ScheduleEntry, slots []Slot) *Board {
	b := &Board{
		slots:    append([]Slot(nil), slots...),
		original: append([]ScheduleEntry(nil), entries...),
		byID:     make(map[int64]ScheduleEntry, len(entries)),
		fetched:  make(map[int64]*int, len(entries)),
		home:     make(map[int64]*int, len(entries)),
	}
	for _, e := range entries {
		b.byID[e.ID] = e
		b.fetched[e.ID] = cloneIdx(e.SlotIdx)
	}
	b.proj = replay(b.original, b.slots, nil)
	for idx, e := range b.proj.grid {
		b.home[e.ID] = IntPtr(idx)
	}
	return b
}

// Rebuild replays ops in order against the fetched entries and returns the
// resulting projection. It is a pure function of its inputs.
func Rebuild(entries []ScheduleEntry, slots []Slot, ops []StagedOperation) (Grid, []HoldingCard) {
	p := replay(entries, slots, ops)
	return p.grid, append([]HoldingCard(nil), p.holding...)
}

// DropOnSlot moves an entry onto target, evicting any occupant into the
// holding pool. Dropping an entry onto its own slot is a no-op and reports
// false.
func (b *Board) DropOnSlot(entryID int64, target int) (bool, error) {
	entry, ok := b.byID[entryID]
	if !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownEntry, entryID)
	}
	if !b.proj.validSlot(IntPtr(target)) {
		return false, fmt.Errorf("%w: %d", ErrUnknownSlot, target)
	}
	current, inGrid := b.proj.grid.SlotOf(entryID)
	if inGrid && current == target {
		return false, nil
	}
	action := ActionMove
	if !inGrid {
		action = ActionMoveFromHold
	}
	b.proj.detach(entryID)
	b.proj.place(entry, target)
	b.stage(entryID, IntPtr(target), action)
	return true, nil
}

// PlaceFromHolding moves a held entry onto target, evicting any occupant.
func (b *Board) PlaceFromHolding(entryID int64, target int) error {
	if b.proj.holdingIndex(entryID) < 0 {
		return fmt.Errorf("%w: %d", ErrNotInHolding, entryID)
	}
	_, err := b.DropOnSlot(entryID, target)
	return err
}

// Suspend detaches a placed entry into the holding pool, tagged with the
// slot it left.
func (b *Board) Suspend(entryID int64) error {
	entry, ok := b.byID[entryID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownEntry, entryID)
	}
	current, inGrid := b.proj.grid.SlotOf(entryID)
	if !inGrid {
		return fmt.Errorf("%w: %d", ErrNotInGrid, entryID)
	}
	b.proj.detach(entryID)
	b.proj.hold(entry, IntPtr(current))
	b.stage(entryID, nil, ActionSuspend)
	return nil
}

// Revert undoes everything staged for a held entry without a server call.
// The entry returns to its home slot when that slot is free; otherwise the
// card is dropped from the pool. Entries the reverted one had evicted go
// back to their slots when nothing else claims them.
func (b *Board) Revert(entryID int64) (RevertResult, error) {
	hi := b.proj.holdingIndex(entryID)
	if hi < 0 {
		return RevertHeld, fmt.Errorf("%w: %d", ErrNotInHolding, entryID)
	}
	b.removeOp(entryID)

	home := b.home[entryID]
	if home == nil {
		b.proj.holding[hi].Origin = nil
		return RevertHeld, nil
	}
	if _, occupied := b.proj.grid[*home]; occupied {
		b.proj.removeHolding(hi)
		return RevertDropped, nil
	}
	if b.settle(entryID) {
		return RevertPlaced, nil
	}
	card := b.proj.holding[hi]
	b.proj.removeHolding(hi)
	b.proj.grid[*home] = card.Entry.WithSlot(home)
	b.stage(entryID, home, ActionMoveFromHold)
	return RevertPlaced, nil
}

// UndoLastOp drops the most recent staged operation and rebuilds the
// projection from the fetched entries and the remaining operations.
func (b *Board) UndoLastOp() (StagedOperation, bool) {
	if len(b.ops) == 0 {
		return StagedOperation{}, false
	}
	last := b.ops[len(b.ops)-1]
	b.ops = b.ops[:len(b.ops)-1]
	b.proj = replay(b.original, b.slots, b.ops)
	return last, true
}

// Grid returns a copy of the current projection.
func (b *Board) Grid() Grid {
	return b.proj.grid.clone()
}

// Holding returns a copy of the holding pool.
func (b *Board) Holding() []HoldingCard {
	return append([]HoldingCard(nil), b.proj.holding...)
}

// Ops returns the staged operations in submission order.
func (b *Board) Ops() []StagedOperation {
	return append([]StagedOperation(nil), b.ops...)
}

// Slots returns the slot enumeration.
func (b *Board) Slots() []Slot {
	return append([]Slot(nil), b.slots...)
}

// Entries returns the entries as fetched.
func (b *Board) Entries() []ScheduleEntry {
	return append([]ScheduleEntry(nil), b.original...)
}

// Entry looks up a fetched entry.
func (b *Board) Entry(entryID int64) (ScheduleEntry, bool) {
	e, ok := b.byID[entryID]
	return e, ok
}

// Slot looks up a slot by index.
func (b *Board) Slot(idx int) (Slot, bool) {
	s, ok := b.proj.slots[idx]
	return s, ok
}

// Dirty reports whether operations are staged.
func (b *Board) Dirty() bool {
	return len(b.ops) > 0
}

func (b *Board) stage(entryID int64, to *int, action Action) {
	if sameIdx(to, b.home[entryID]) && b.settle(entryID) {
		return
	}
	b.removeOp(entryID)
	b.ops = append(b.ops, StagedOperation{
		EntryID:     entryID,
		FromSlotIdx: cloneIdx(b.fetched[entryID]),
		ToSlotIdx:   cloneIdx(to),
		Action:      action,
	})
}

// settle drops the operation of an entry that is back where it was loaded
// and rebuilds the projection from the remaining operations, so entries it
// evicted on the way are restored too. It reports false, leaving the board
// untouched, when the rebuild would not put the entry back home.
func (b *Board) settle(entryID int64) bool {
	rest := make([]StagedOperation, 0, len(b.ops))
	for _, op := range b.ops {
		if op.EntryID != entryID {
			rest = append(rest, op)
		}
	}
	rebuilt := replay(b.original, b.slots, rest)
	if !rebuilt.at(entryID, b.home[entryID]) {
		return false
	}
	b.ops = rest
	b.proj = rebuilt
	return true
}

func (b *Board) removeOp(entryID int64) {
	for i, op := range b.ops {
		if op.EntryID == entryID {
			b.ops = append(b.ops[:i], b.ops[i+1:]...)
			return
		}
	}
}

type projection struct {
	slots   map[int]Slot
	grid    Grid
	holding []HoldingCard
}

func replay(entries []ScheduleEntry, slots []Slot, ops []StagedOperation) *projection {
	p := &projection{
		slots: make(map[int]Slot, len(slots)),
		grid:  make(Grid, len(entries)),
	}
	for _, s := range slots {
		p.slots[s.Idx] = s
	}

	byID := make(map[int64]ScheduleEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
		switch {
		case !p.validSlot(e.SlotIdx):
			p.hold(e, nil)
		case p.occupied(*e.SlotIdx):
			p.hold(e, e.SlotIdx)
		default:
			p.grid[*e.SlotIdx] = e
		}
	}

	for _, op := range ops {
		entry, ok := byID[op.EntryID]
		if !ok {
			continue
		}
		switch op.Action {
		case ActionMove, ActionMoveFromHold:
			if !p.validSlot(op.ToSlotIdx) {
				continue
			}
			p.detach(op.EntryID)
			p.place(entry, *op.ToSlotIdx)
		case ActionSuspend:
			if current, inGrid := p.grid.SlotOf(op.EntryID); inGrid {
				p.detach(op.EntryID)
				p.hold(entry, IntPtr(current))
			}
		}
	}
	return p
}

// validSlot accepts any non-nil index when the slot list is unknown, so a
// degraded load still shows entries where the server put them.
func (p *projection) validSlot(idx *int) bool {
	if idx == nil {
		return false
	}
	if len(p.slots) == 0 {
		return *idx >= 0
	}
	_, ok := p.slots[*idx]
	return ok
}

// at reports whether the entry sits at idx, or is held when idx is nil.
func (p *projection) at(entryID int64, idx *int) bool {
	if idx == nil {
		return p.holdingIndex(entryID) >= 0
	}
	e, ok := p.grid[*idx]
	return ok && e.ID == entryID
}

func (p *projection) occupied(idx int) bool {
	_, ok := p.grid[idx]
	return ok
}

func (p *projection) holdingIndex(entryID int64) int {
	for i, card := range p.holding {
		if card.Entry.ID == entryID {
			return i
		}
	}
	return -1
}

func (p *projection) removeHolding(i int) {
	p.holding = append(p.holding[:i], p.holding[i+1:]...)
}

// detach removes the entry from the grid or the holding pool.
func (p *projection) detach(entryID int64) {
	if idx, ok := p.grid.SlotOf(entryID); ok {
		delete(p.grid, idx)
	}
	if i := p.holdingIndex(entryID); i >= 0 {
		p.removeHolding(i)
	}
}

// place puts entry at target, evicting the occupant into the pool.
func (p *projection) place(entry ScheduleEntry, target int) {
	if occupant, ok := p.grid[target]; ok && occupant.ID != entry.ID {
		p.hold(occupant, IntPtr(target))
	}
	p.grid[target] = entry.WithSlot(IntPtr(target))
}

func (p *projection) hold(entry ScheduleEntry, from *int) {
	p.holding = append(p.holding, HoldingCard{
		Entry:  entry.WithSlot(nil),
		Origin: p.origin(from),
	})
}

func (p *projection) origin(idx *int) *Origin {
	if idx == nil {
		return nil
	}
	label := fmt.Sprintf("slot %d", *idx)
	if s, ok := p.slots[*idx]; ok {
		label = s.DisplayLabel()
	}
	return &Origin{SlotIdx: *idx, Label: label}
}
