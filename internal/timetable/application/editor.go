package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/felixgeelhaar/schooldesk/internal/timetable/domain"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
)

var (
	// ErrNoStagedOperations is returned when validate/apply has nothing to send.
	ErrNoStagedOperations = errors.New("no staged operations")
	// ErrNotLoaded is returned when the editor is used before LoadInitial.
	ErrNotLoaded = errors.New("timetable not loaded")
)

// Gateway is the backend the editor reconciles against.
type Gateway interface {
	ListSlots(ctx context.Context) ([]domain.Slot, error)
	ListEntries(ctx context.Context, classID string) ([]domain.ScheduleEntry, error)
	ValidateBatch(ctx context.Context, ops []domain.StagedOperation) (domain.Report, error)
	ApplyBatch(ctx context.Context, ops []domain.StagedOperation, persist bool) (domain.Report, error)
	GetConflicts(ctx context.Context) (domain.Report, error)
	ResolveConflicts(ctx context.Context, dryRun, persist bool) (domain.Report, error)
}

// State is the phase of an editing session.
type State string

const (
	StateLoaded           State = "loaded"
	StateEditing          State = "editing"
	StateValidated        State = "validated"
	StateAppliedSimulated State = "applied_simulated"
)

// Snapshot is a read-only copy of the session for rendering.
type Snapshot struct {
	State    State
	ClassID  string
	Slots    []domain.Slot
	Grid     domain.Grid
	Holding  []domain.HoldingCard
	Ops      []domain.StagedOperation
	Warnings []string
}

// Editor runs one timetable editing session. Local edits only touch the
// board; the server is reached by LoadInitial, Validate, Apply and the
// conflict calls. The lock is never held across a network call.
type Editor struct {
	gateway Gateway
	logger  *slog.Logger
	metrics observability.Metrics

	mu       sync.Mutex
	classID  string
	board    *domain.Board
	state    State
	warnings []string
}

// NewEditor creates an editor filtered on classID ("" for every class).
func NewEditor(gateway Gateway, classID string, logger *slog.Logger, metrics observability.Metrics) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Editor{
		gateway: gateway,
		logger:  logger,
		metrics: metrics,
		classID: classID,
	}
}

// SetClass changes the class filter. The next LoadInitial applies it.
func (e *Editor) SetClass(classID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classID = classID
}

// LoadInitial fetches slots and entries and resets the staged operations.
// An unreachable slot list degrades to an empty one with a warning.
func (e *Editor) LoadInitial(ctx context.Context) error {
	e.mu.Lock()
	classID := e.classID
	e.mu.Unlock()

	return observability.TimeOperation(ctx, e.logger, e.metrics, "timetable.load", func() error {
		var warnings []string
		slots, err := e.gateway.ListSlots(ctx)
		if err != nil {
			e.logger.Warn("slot list unavailable, continuing without slots", "error", err)
			warnings = append(warnings, "slots unavailable: "+err.Error())
			slots = nil
		}
		entries, err := e.gateway.ListEntries(ctx, classID)
		if err != nil {
			return fmt.Errorf("load timetable: %w", err)
		}

		e.mu.Lock()
		defer e.mu.Unlock()
		e.board = domain.NewBoard(entries, slots)
		e.state = StateLoaded
		e.warnings = warnings
		e.metrics.Gauge(observability.MetricStagedOperations, 0)
		return nil
	})
}

// State returns the session phase.
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot copies the current session.
func (e *Editor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		State:    e.state,
		ClassID:  e.classID,
		Warnings: append([]string(nil), e.warnings...),
	}
	if e.board != nil {
		snap.Slots = e.board.Slots()
		snap.Grid = e.board.Grid()
		snap.Holding = e.board.Holding()
		snap.Ops = e.board.Ops()
	}
	return snap
}

// Entry looks up a fetched entry.
func (e *Editor) Entry(entryID int64) (domain.ScheduleEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.board == nil {
		return domain.ScheduleEntry{}, false
	}
	return e.board.Entry(entryID)
}

// DropOnSlot moves an entry onto a slot. See domain.Board.DropOnSlot.
func (e *Editor) DropOnSlot(entryID int64, target int) (bool, error) {
	var changed bool
	err := e.edit(func(b *domain.Board) error {
		var err error
		changed, err = b.DropOnSlot(entryID, target)
		return err
	})
	return changed, err
}

// PlaceFromHolding moves a held entry onto a slot.
func (e *Editor) PlaceFromHolding(entryID int64, target int) error {
	return e.edit(func(b *domain.Board) error {
		return b.PlaceFromHolding(entryID, target)
	})
}

// Suspend moves a placed entry into the holding pool.
func (e *Editor) Suspend(entryID int64) error {
	return e.edit(func(b *domain.Board) error {
		return b.Suspend(entryID)
	})
}

// Revert undoes the staged change of a held entry locally.
func (e *Editor) Revert(entryID int64) (domain.RevertResult, error) {
	var result domain.RevertResult
	err := e.edit(func(b *domain.Board) error {
		var err error
		result, err = b.Revert(entryID)
		return err
	})
	return result, err
}

// UndoLastOp drops the most recent staged operation.
func (e *Editor) UndoLastOp() (domain.StagedOperation, bool, error) {
	var (
		op domain.StagedOperation
		ok bool
	)
	err := e.edit(func(b *domain.Board) error {
		op, ok = b.UndoLastOp()
		return nil
	})
	return op, ok, err
}

func (e *Editor) edit(fn func(b *domain.Board) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.board == nil {
		return ErrNotLoaded
	}
	if err := fn(e.board); err != nil {
		return err
	}
	e.state = StateLoaded
	if e.board.Dirty() {
		e.state = StateEditing
	}
	e.metrics.Gauge(observability.MetricStagedOperations, float64(len(e.board.Ops())))
	return nil
}

func (e *Editor) stagedOps() ([]domain.StagedOperation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.board == nil {
		return nil, ErrNotLoaded
	}
	ops := e.board.Ops()
	if len(ops) == 0 {
		return nil, ErrNoStagedOperations
	}
	return ops, nil
}

// Validate sends the staged operations for a dry check. Local state is
// never changed.
func (e *Editor) Validate(ctx context.Context) (domain.Report, error) {
	ops, err := e.stagedOps()
	if err != nil {
		return domain.Report{}, err
	}
	report, err := observability.TimeOperationResult(ctx, e.logger, e.metrics, "timetable.validate", func() (domain.Report, error) {
		return e.gateway.ValidateBatch(ctx, ops)
	})
	e.metrics.Counter(observability.MetricBatchValidations, 1, observability.T("failed", strconv.FormatBool(err != nil || report.Failed())))
	if err != nil {
		return domain.Report{}, err
	}

	e.mu.Lock()
	e.state = StateValidated
	e.mu.Unlock()
	return report, nil
}

// Apply submits the staged operations. With persist=false the server only
// simulates. A persisted success discards the staged operations and
// reloads from the server; a failed report leaves everything in place.
func (e *Editor) Apply(ctx context.Context, persist bool) (domain.Report, error) {
	ops, err := e.stagedOps()
	if err != nil {
		return domain.Report{}, err
	}
	timer := observability.StartTimer("timetable.apply").
		WithLogger(e.logger).
		WithMetrics(e.metrics).
		WithTags(observability.T("persist", strconv.FormatBool(persist)))
	report, err := e.gateway.ApplyBatch(ctx, ops, persist)
	timer.Stop(ctx, err)
	e.metrics.Counter(observability.MetricBatchApplies, 1,
		observability.T("persist", strconv.FormatBool(persist)),
		observability.T("failed", strconv.FormatBool(err != nil || report.Failed())),
	)
	if err != nil {
		return domain.Report{}, err
	}
	if report.Failed() {
		e.logger.Info("apply reported a failure, keeping staged operations", "operations", len(ops), "error", report.Error)
		return report, nil
	}
	if !persist {
		e.mu.Lock()
		e.state = StateAppliedSimulated
		e.mu.Unlock()
		return report, nil
	}
	return report, e.resync(ctx)
}

// CheckConflicts fetches the current conflict report.
func (e *Editor) CheckConflicts(ctx context.Context) (domain.Report, error) {
	return observability.TimeOperationResult(ctx, e.logger, e.metrics, "timetable.conflicts", func() (domain.Report, error) {
		return e.gateway.GetConflicts(ctx)
	})
}

// ResolveConflicts proposes (dryRun) or applies automatic resolutions and
// reloads after a persisted success.
func (e *Editor) ResolveConflicts(ctx context.Context, dryRun, persist bool) (domain.Report, error) {
	report, err := observability.TimeOperationResult(ctx, e.logger, e.metrics, "timetable.resolve", func() (domain.Report, error) {
		return e.gateway.ResolveConflicts(ctx, dryRun, persist)
	})
	if err != nil {
		return domain.Report{}, err
	}
	if report.Failed() || dryRun || !persist {
		return report, nil
	}
	return report, e.resync(ctx)
}

// resync reloads after the server changed. If the reload fails the session
// is emptied, since the old projection no longer matches the server.
func (e *Editor) resync(ctx context.Context) error {
	if err := e.LoadInitial(ctx); err != nil {
		e.mu.Lock()
		slots := []domain.Slot(nil)
		if e.board != nil {
			slots = e.board.Slots()
		}
		e.board = domain.NewBoard(nil, slots)
		e.state = StateLoaded
		e.mu.Unlock()
		return fmt.Errorf("changes saved but reload failed: %w", err)
	}
	return nil
}
