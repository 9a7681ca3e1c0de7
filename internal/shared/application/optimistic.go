package application

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy is returned when a cell already has a change in flight. The new
// request is dropped, not queued.
var ErrBusy = errors.New("a change is already in flight for this cell")

// Cells tracks which cells have an in-flight remote call. It is the
// per-cell serialization point of optimistic editing: there is no global lock.
type Cells[K comparable] struct {
	mu   sync.Mutex
	busy map[K]struct{}
}

// NewCells creates an empty busy set.
func NewCells[K comparable]() *Cells[K] {
	return &Cells[K]{busy: make(map[K]struct{})}
}

// Acquire marks key busy. It reports false when key was already busy.
func (c *Cells[K]) Acquire(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.busy[key]; ok {
		return false
	}
	c.busy[key] = struct{}{}
	return true
}

// AcquireAll marks every key busy, skipping keys that already are.
// It returns the keys it acquired.
func (c *Cells[K]) AcquireAll(keys []K) []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	acquired := make([]K, 0, len(keys))
	for _, key := range keys {
		if _, ok := c.busy[key]; ok {
			continue
		}
		c.busy[key] = struct{}{}
		acquired = append(acquired, key)
	}
	return acquired
}

// Release clears the busy flag of key.
func (c *Cells[K]) Release(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.busy, key)
}

// Busy reports whether key has a change in flight.
func (c *Cells[K]) Busy(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.busy[key]
	return ok
}

// Len returns the number of busy cells.
func (c *Cells[K]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.busy)
}

// Mutation is one optimistic change to a single cell. ApplyLocally runs
// before the network call so the change is visible at once; exactly one of
// Commit or Rollback runs after ApplyRemotely returns.
type Mutation interface {
	ApplyLocally()
	ApplyRemotely(ctx context.Context) error
	Commit()
	Rollback(err error)
}

// MutationFuncs adapts plain functions into a Mutation. Nil functions are skipped.
type MutationFuncs struct {
	Local    func()
	Remote   func(ctx context.Context) error
	OnCommit func()
	OnRevert func(err error)
}

func (m MutationFuncs) ApplyLocally() {
	if m.Local != nil {
		m.Local()
	}
}

func (m MutationFuncs) ApplyRemotely(ctx context.Context) error {
	if m.Remote == nil {
		return nil
	}
	return m.Remote(ctx)
}

func (m MutationFuncs) Commit() {
	if m.OnCommit != nil {
		m.OnCommit()
	}
}

func (m MutationFuncs) Rollback(err error) {
	if m.OnRevert != nil {
		m.OnRevert(err)
	}
}

// Run executes m against key. It returns ErrBusy without touching anything
// when key already has a change in flight, and always clears the busy flag
// once the remote call has settled.
func Run[K comparable](ctx context.Context, cells *Cells[K], key K, m Mutation) error {
	if !cells.Acquire(key) {
		return ErrBusy
	}
	return RunHeld(ctx, cells, key, m)
}

// RunHeld executes m against a key the caller has already acquired and
// releases it once the remote call has settled.
func RunHeld[K comparable](ctx context.Context, cells *Cells[K], key K, m Mutation) error {
	defer cells.Release(key)

	m.ApplyLocally()
	if err := m.ApplyRemotely(ctx); err != nil {
		m.Rollback(err)
		return err
	}
	m.Commit()
	return nil
}
