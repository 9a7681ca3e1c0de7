package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/schooldesk/internal/api"
	"github.com/felixgeelhaar/schooldesk/internal/attendance/domain"
	sharedApplication "github.com/felixgeelhaar/schooldesk/internal/shared/application"
	"github.com/felixgeelhaar/schooldesk/pkg/observability"
)

var (
	// ErrCellBusy is returned when the cell already has a change in flight.
	ErrCellBusy = fmt.Errorf("attendance cell busy: %w", sharedApplication.ErrBusy)
	// ErrPendingSave is returned for status changes on a record the server
	// has not confirmed yet.
	ErrPendingSave = errors.New("record not saved yet, wait for save")
	// ErrNoRecord is returned when a status change targets an empty cell.
	ErrNoRecord = errors.New("no attendance record in this cell")
	// ErrNothingToUndo is returned when the undo stack is empty.
	ErrNothingToUndo = errors.New("nothing to undo")
	// ErrNotLoaded is returned before a sheet has been loaded.
	ErrNotLoaded = errors.New("attendance sheet not loaded")
)

const (
	msgWaitForSave   = "Enregistrement en cours, patientez avant de modifier le statut"
	defaultBulkLimit = 8
)

// Gateway is the attendance backend.
type Gateway interface {
	LoadSheet(ctx context.Context, classID, date string) (domain.Sheet, error)
	Create(ctx context.Context, in domain.RecordInput) (domain.Record, error)
	Update(ctx context.Context, id domain.RecordID, in domain.RecordInput) (domain.Record, error)
	Delete(ctx context.Context, id domain.RecordID) error
}

// Options configures an Engine.
type Options struct {
	Logger    *slog.Logger
	Metrics   observability.Metrics
	Notifier  Notifier
	UndoDepth int
	// BulkConcurrency caps parallel requests of BulkMarkAbsent.
	BulkConcurrency int
}

// BulkResult is the per-item outcome of BulkMarkAbsent.
type BulkResult struct {
	Total     int
	Succeeded int
	Failed    []domain.CellKey
	Message   string
}

type loadRequest struct {
	ClassID string `validate:"required"`
	Date    string `validate:"required,datetime=2006-01-02"`
}

var requestValidator = validator.New()

// Engine is the optimistic attendance sheet. Every change shows locally at
// once, is sent to the server, and is rolled back if the server refuses
// it. Cells are independent: the only serialization is the per-cell busy
// flag. The lock guards local state and is never held across a request.
type Engine struct {
	gateway   Gateway
	notifier  Notifier
	logger    *slog.Logger
	metrics   observability.Metrics
	cells     *sharedApplication.Cells[domain.CellKey]
	undo      *sharedApplication.UndoStack[domain.UndoAction]
	bulkLimit int

	mu      sync.Mutex
	loaded  bool
	sheet   domain.Sheet
	records map[domain.CellKey]domain.Record
}

// NewEngine creates an attendance engine.
func NewEngine(gateway Gateway, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	limit := opts.BulkConcurrency
	if limit <= 0 {
		limit = defaultBulkLimit
	}
	return &Engine{
		gateway:   gateway,
		notifier:  notifier,
		logger:    logger,
		metrics:   metrics,
		cells:     sharedApplication.NewCells[domain.CellKey](),
		undo:      sharedApplication.NewUndoStack[domain.UndoAction](opts.UndoDepth),
		bulkLimit: limit,
		records:   make(map[domain.CellKey]domain.Record),
	}
}

// Load fetches the sheet of a class on a date (YYYY-MM-DD) and clears the
// undo history.
func (e *Engine) Load(ctx context.Context, classID, date string) error {
	return e.load(ctx, classID, date, true)
}

func (e *Engine) load(ctx context.Context, classID, date string, clearUndo bool) error {
	if err := requestValidator.Struct(loadRequest{ClassID: classID, Date: date}); err != nil {
		return fmt.Errorf("invalid sheet request: %w", err)
	}
	sheet, err := e.gateway.LoadSheet(ctx, classID, date)
	if err != nil {
		e.notifier.Notify(LevelError, api.UserMessage(err))
		return err
	}
	sheet.ClassID = classID
	if sheet.Date == "" {
		sheet.Date = date
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.records = make(map[domain.CellKey]domain.Record, len(sheet.Records))
	for _, rec := range sheet.Records {
		e.records[rec.Key()] = rec
	}
	sheet.Records = nil
	e.sheet = sheet
	e.loaded = true
	if clearUndo {
		e.undo.Clear()
	}
	e.logger.Debug("attendance sheet loaded",
		"class_id", classID,
		"date", sheet.Date,
		"students", len(sheet.Students),
		"records", len(e.records),
	)
	return nil
}

// Sheet returns the loaded sheet with the current records.
func (e *Engine) Sheet() domain.Sheet {
	e.mu.Lock()
	defer e.mu.Unlock()
	sheet := e.sheet
	sheet.Students = append([]domain.Student(nil), e.sheet.Students...)
	sheet.Sessions = append([]domain.Session(nil), e.sheet.Sessions...)
	sheet.Records = e.recordsLocked()
	return sheet
}

// Cell returns the record of a cell.
func (e *Engine) Cell(key domain.CellKey) (domain.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[key]
	return rec, ok
}

// Records returns every record ordered by session then student.
func (e *Engine) Records() []domain.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordsLocked()
}

func (e *Engine) recordsLocked() []domain.Record {
	out := make([]domain.Record, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduleEntry != out[j].ScheduleEntry {
			return out[i].ScheduleEntry < out[j].ScheduleEntry
		}
		return out[i].Student < out[j].Student
	})
	return out
}

// Busy reports whether a cell has a change in flight.
func (e *Engine) Busy(key domain.CellKey) bool {
	return e.cells.Busy(key)
}

// UndoDepth returns the number of undoable actions.
func (e *Engine) UndoDepth() int {
	return e.undo.Len()
}

// PeekUndo returns the action Undo would reverse.
func (e *Engine) PeekUndo() (domain.UndoAction, bool) {
	return e.undo.Peek()
}

// Toggle marks an empty cell absent or clears an occupied one.
func (e *Engine) Toggle(ctx context.Context, key domain.CellKey) error {
	e.mu.Lock()
	loaded, date := e.loaded, e.sheet.Date
	e.mu.Unlock()
	if !loaded {
		return ErrNotLoaded
	}

	var (
		existing domain.Record
		occupied bool
		temp     domain.Record
		created  domain.Record
		handle   sharedApplication.UndoHandle
	)
	mutation := sharedApplication.MutationFuncs{
		Local: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			existing, occupied = e.records[key]
			if occupied {
				delete(e.records, key)
				handle = e.undo.Push(domain.UndoAction{Kind: domain.UndoDelete, Key: key, Record: existing})
				return
			}
			temp = domain.Record{
				ID:            domain.NewTempID(),
				Student:       key.StudentID,
				ScheduleEntry: key.EntryID,
				Date:          date,
				Status:        domain.StatusAbsent,
			}
			e.records[key] = temp
			handle = e.undo.Push(domain.UndoAction{Kind: domain.UndoCreate, Key: key, Record: temp})
		},
		Remote: func(ctx context.Context) error {
			if occupied {
				if existing.Pending() {
					return nil
				}
				return e.gateway.Delete(ctx, existing.ID)
			}
			var err error
			created, err = e.gateway.Create(ctx, temp.Input())
			return err
		},
		OnCommit: func() {
			if occupied {
				return
			}
			e.mu.Lock()
			defer e.mu.Unlock()
			e.swapIfCurrent(key, temp.ID, created)
			e.undo.Replace(handle, domain.UndoAction{Kind: domain.UndoCreate, Key: key, Record: created})
		},
		OnRevert: func(err error) {
			e.mu.Lock()
			e.undo.Discard(handle)
			if occupied {
				if _, taken := e.records[key]; !taken {
					e.records[key] = existing
				}
			} else {
				e.removeIfCurrent(key, temp.ID)
			}
			e.mu.Unlock()
			e.notifier.Notify(LevelError, api.UserMessage(err))
		},
	}
	return e.run(ctx, "toggle", key, mutation)
}

// SetStatus changes the status of a saved record.
func (e *Engine) SetStatus(ctx context.Context, key domain.CellKey, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidStatus, status)
	}
	current, ok := e.Cell(key)
	if !ok {
		return ErrNoRecord
	}
	if current.Pending() {
		e.notifier.Notify(LevelInfo, msgWaitForSave)
		return ErrPendingSave
	}
	if current.Status == status {
		return nil
	}

	var (
		before  domain.Record
		after   domain.Record
		saved   domain.Record
		present bool
		handle  sharedApplication.UndoHandle
	)
	mutation := sharedApplication.MutationFuncs{
		Local: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			before, present = e.records[key]
			if !present || before.Pending() {
				return
			}
			after = before
			after.Status = status
			e.records[key] = after
			handle = e.undo.Push(domain.UndoAction{Kind: domain.UndoStatus, Key: key, Record: after, PrevStatus: before.Status})
		},
		Remote: func(ctx context.Context) error {
			if !present {
				return ErrNoRecord
			}
			if before.Pending() {
				return ErrPendingSave
			}
			var err error
			saved, err = e.gateway.Update(ctx, before.ID, after.Input())
			return err
		},
		OnCommit: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.swapIfCurrent(key, before.ID, saved)
		},
		OnRevert: func(err error) {
			e.mu.Lock()
			e.undo.Discard(handle)
			if present && !before.Pending() {
				e.swapIfCurrent(key, before.ID, before)
			}
			e.mu.Unlock()
			if errors.Is(err, ErrPendingSave) {
				e.notifier.Notify(LevelInfo, msgWaitForSave)
				return
			}
			if !errors.Is(err, ErrNoRecord) {
				e.notifier.Notify(LevelError, api.UserMessage(err))
			}
		},
	}
	return e.run(ctx, "status", key, mutation)
}

// BulkMarkAbsent marks every empty cell of a session absent. The creates
// run concurrently and each is reconciled on its own; the returned result
// and notification report "<ok> / <total> absences enregistrées".
func (e *Engine) BulkMarkAbsent(ctx context.Context, entryID int64) (BulkResult, error) {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return BulkResult{}, ErrNotLoaded
	}
	date := e.sheet.Date
	var candidates []domain.CellKey
	for _, s := range e.sheet.Students {
		key := domain.CellKey{StudentID: s.ID, EntryID: entryID}
		if _, ok := e.records[key]; !ok {
			candidates = append(candidates, key)
		}
	}
	e.mu.Unlock()

	acquired := e.cells.AcquireAll(candidates)
	defer func() {
		for _, key := range acquired {
			e.cells.Release(key)
		}
	}()

	// Cells may have been filled between the scan and the acquire.
	e.mu.Lock()
	temps := make([]domain.Record, 0, len(acquired))
	for _, key := range acquired {
		if _, ok := e.records[key]; ok {
			continue
		}
		rec := domain.Record{
			ID:            domain.NewTempID(),
			Student:       key.StudentID,
			ScheduleEntry: key.EntryID,
			Date:          date,
			Status:        domain.StatusAbsent,
		}
		e.records[key] = rec
		temps = append(temps, rec)
	}
	if len(temps) == 0 {
		e.mu.Unlock()
		msg := "Aucune absence à enregistrer"
		e.notifier.Notify(LevelInfo, msg)
		return BulkResult{Message: msg}, nil
	}
	keys := make([]domain.CellKey, len(temps))
	for i, rec := range temps {
		keys[i] = rec.Key()
	}
	handle := e.undo.Push(domain.UndoAction{Kind: domain.UndoBulkCreate, Keys: keys})
	e.mu.Unlock()

	type outcome struct {
		saved domain.Record
		err   error
	}
	outcomes := make([]outcome, len(temps))
	var g errgroup.Group
	g.SetLimit(e.bulkLimit)
	for i, rec := range temps {
		g.Go(func() error {
			saved, err := e.gateway.Create(ctx, rec.Input())
			outcomes[i] = outcome{saved: saved, err: err}
			// Settle every request; a failure must not cancel the others.
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{Total: len(temps)}
	e.mu.Lock()
	for i, rec := range temps {
		out := outcomes[i]
		if out.err != nil {
			e.removeIfCurrent(rec.Key(), rec.ID)
			result.Failed = append(result.Failed, rec.Key())
			e.logger.Warn("bulk absence failed", "cell", rec.Key().String(), "error", out.err)
			continue
		}
		e.swapIfCurrent(rec.Key(), rec.ID, out.saved)
		result.Succeeded++
	}
	if result.Succeeded == 0 {
		e.undo.Discard(handle)
	}
	e.mu.Unlock()

	result.Message = fmt.Sprintf("%d / %d absences enregistrées", result.Succeeded, result.Total)
	level := LevelSuccess
	if len(result.Failed) > 0 {
		level = LevelError
	}
	e.notifier.Notify(level, result.Message)
	e.metrics.Counter(observability.MetricOptimisticApplied, int64(result.Succeeded), observability.T("operation", "bulk_absent"))
	e.metrics.Counter(observability.MetricOptimisticRolledBack, int64(len(result.Failed)), observability.T("operation", "bulk_absent"))
	return result, nil
}

// Undo reverses the most recent action. Undo is not itself undoable. If a
// cell the action touches is busy, nothing is popped. The action is popped
// with the busy flags of its cells held, so a concurrent change cannot slip
// in between and the action is never lost.
func (e *Engine) Undo(ctx context.Context) (domain.UndoAction, error) {
	var held []domain.CellKey
	action, ok := e.undo.PopIf(func(a domain.UndoAction) bool {
		cells := a.Cells()
		held = e.cells.AcquireAll(cells)
		if len(held) == len(cells) {
			return true
		}
		e.release(held)
		held = nil
		return false
	})
	if !ok {
		top, pending := e.undo.Peek()
		if !pending {
			return domain.UndoAction{}, ErrNothingToUndo
		}
		e.metrics.Counter(observability.MetricOptimisticBusy, 1, observability.T("operation", "undo"))
		return top, ErrCellBusy
	}
	e.metrics.Counter(observability.MetricUndoPerformed, 1, observability.T("kind", string(action.Kind)))

	var err error
	switch action.Kind {
	case domain.UndoCreate:
		err = e.undoCreate(ctx, action.Key)
	case domain.UndoDelete:
		err = e.undoDelete(ctx, action)
	case domain.UndoStatus:
		err = e.undoStatus(ctx, action)
	case domain.UndoBulkCreate:
		err = e.reload(ctx)
		e.release(held)
	default:
		e.release(held)
		err = fmt.Errorf("unknown undo action %q", action.Kind)
	}
	return action, err
}

func (e *Engine) release(keys []domain.CellKey) {
	for _, key := range keys {
		e.cells.Release(key)
	}
}

// undoCreate removes the record the create produced: locally while it is
// still temporary, otherwise with a server delete.
func (e *Engine) undoCreate(ctx context.Context, key domain.CellKey) error {
	var (
		current domain.Record
		present bool
	)
	mutation := sharedApplication.MutationFuncs{
		Local: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			current, present = e.records[key]
			delete(e.records, key)
		},
		Remote: func(ctx context.Context) error {
			if !present || current.Pending() {
				return nil
			}
			return e.gateway.Delete(ctx, current.ID)
		},
		OnRevert: func(err error) {
			e.mu.Lock()
			if _, taken := e.records[key]; !taken {
				e.records[key] = current
			}
			e.mu.Unlock()
			e.notifier.Notify(LevelError, api.UserMessage(err))
		},
	}
	return e.runHeld(ctx, "undo_create", key, mutation)
}

// undoDelete recreates a deleted record on the server.
func (e *Engine) undoDelete(ctx context.Context, action domain.UndoAction) error {
	key := action.Key
	var (
		temp    domain.Record
		created domain.Record
		skipped bool
	)
	mutation := sharedApplication.MutationFuncs{
		Local: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			if _, taken := e.records[key]; taken {
				skipped = true
				return
			}
			temp = action.Record
			temp.ID = domain.NewTempID()
			e.records[key] = temp
		},
		Remote: func(ctx context.Context) error {
			if skipped {
				return nil
			}
			var err error
			created, err = e.gateway.Create(ctx, temp.Input())
			return err
		},
		OnCommit: func() {
			if skipped {
				return
			}
			e.mu.Lock()
			defer e.mu.Unlock()
			e.swapIfCurrent(key, temp.ID, created)
		},
		OnRevert: func(err error) {
			e.mu.Lock()
			e.removeIfCurrent(key, temp.ID)
			e.mu.Unlock()
			e.notifier.Notify(LevelError, api.UserMessage(err))
		},
	}
	return e.runHeld(ctx, "undo_delete", key, mutation)
}

// undoStatus puts the previous status back on the server.
func (e *Engine) undoStatus(ctx context.Context, action domain.UndoAction) error {
	key := action.Key
	var (
		before  domain.Record
		after   domain.Record
		saved   domain.Record
		present bool
	)
	mutation := sharedApplication.MutationFuncs{
		Local: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			before, present = e.records[key]
			if !present || before.Pending() {
				return
			}
			after = before
			after.Status = action.PrevStatus
			e.records[key] = after
		},
		Remote: func(ctx context.Context) error {
			if !present {
				return nil
			}
			if before.Pending() {
				return ErrPendingSave
			}
			var err error
			saved, err = e.gateway.Update(ctx, before.ID, after.Input())
			return err
		},
		OnCommit: func() {
			if !present {
				return
			}
			e.mu.Lock()
			defer e.mu.Unlock()
			e.swapIfCurrent(key, before.ID, saved)
		},
		OnRevert: func(err error) {
			e.mu.Lock()
			if present && !before.Pending() {
				e.swapIfCurrent(key, before.ID, before)
			}
			e.mu.Unlock()
			e.notifier.Notify(LevelError, api.UserMessage(err))
		},
	}
	return e.runHeld(ctx, "undo_status", key, mutation)
}

// reload refetches the sheet and keeps the older undo actions; they address
// cells, not the records they held.
func (e *Engine) reload(ctx context.Context) error {
	e.mu.Lock()
	classID, date := e.sheet.ClassID, e.sheet.Date
	e.mu.Unlock()
	if err := e.load(ctx, classID, date, false); err != nil {
		return fmt.Errorf("reload attendance sheet: %w", err)
	}
	return nil
}

func (e *Engine) run(ctx context.Context, operation string, key domain.CellKey, m sharedApplication.Mutation) error {
	return e.settle(operation, key, sharedApplication.Run(ctx, e.cells, key, m))
}

// runHeld is run for a cell Undo has already acquired.
func (e *Engine) runHeld(ctx context.Context, operation string, key domain.CellKey, m sharedApplication.Mutation) error {
	return e.settle(operation, key, sharedApplication.RunHeld(ctx, e.cells, key, m))
}

func (e *Engine) settle(operation string, key domain.CellKey, err error) error {
	tag := observability.T("operation", operation)
	switch {
	case errors.Is(err, sharedApplication.ErrBusy):
		e.metrics.Counter(observability.MetricOptimisticBusy, 1, tag)
		return ErrCellBusy
	case err != nil:
		e.metrics.Counter(observability.MetricOptimisticRolledBack, 1, tag)
		e.logger.Debug("attendance change rolled back", "operation", operation, "cell", key.String(), "error", err)
		return err
	default:
		e.metrics.Counter(observability.MetricOptimisticApplied, 1, tag)
		return nil
	}
}

// swapIfCurrent replaces the record of key with rec if the cell still holds
// the record identified by id. Must be called with e.mu held.
func (e *Engine) swapIfCurrent(key domain.CellKey, id domain.RecordID, rec domain.Record) {
	if cur, ok := e.records[key]; ok && cur.ID == id {
		if rec.ID == "" {
			rec.ID = id
		}
		e.records[key] = rec
	}
}

// removeIfCurrent clears key if it still holds the record identified by id.
// Must be called with e.mu held.
func (e *Engine) removeIfCurrent(key domain.CellKey, id domain.RecordID) {
	if cur, ok := e.records[key]; ok && cur.ID == id {
		delete(e.records, key)
	}
}
