package application

import "sync"

// DefaultUndoDepth is the number of actions kept when no depth is given.
const DefaultUndoDepth = 20

// UndoHandle identifies a pushed action so a failed mutation can discard
// exactly the action it recorded, even if other cells pushed since.
type UndoHandle uint64

type undoItem[A any] struct {
	handle UndoHandle
	action A
}

// UndoStack is a bounded most-recent-first stack of reversible actions.
// The oldest action is dropped once the depth is exceeded. There is no redo.
type UndoStack[A any] struct {
	mu    sync.Mutex
	depth int
	next  UndoHandle
	items []undoItem[A]
}

// NewUndoStack creates a stack holding at most depth actions.
func NewUndoStack[A any](depth int) *UndoStack[A] {
	if depth <= 0 {
		depth = DefaultUndoDepth
	}
	return &UndoStack[A]{depth: depth}
}

// Push records action and returns its handle.
func (s *UndoStack[A]) Push(action A) UndoHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.items = append(s.items, undoItem[A]{handle: s.next, action: action})
	if over := len(s.items) - s.depth; over > 0 {
		s.items = append(s.items[:0:0], s.items[over:]...)
	}
	return s.next
}

// Discard removes the action pushed under handle. It reports false when the
// action is gone already (popped or evicted by depth).
func (s *UndoStack[A]) Discard(handle UndoHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].handle == handle {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps the action stored under handle, used when a pending action
// learns its server id.
func (s *UndoStack[A]) Replace(handle UndoHandle, action A) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].handle == handle {
			s.items[i].action = action
			return true
		}
	}
	return false
}

// Pop removes and returns the most recent action.
func (s *UndoStack[A]) Pop() (A, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero A
	if len(s.items) == 0 {
		return zero, false
	}
	last := s.items[len(s.items)-1]
	s.items = s.items[:len(s.items)-1]
	return last.action, true
}

// PopIf removes and returns the most recent action when claim accepts it.
// claim runs under the stack lock, so nothing can be pushed between the
// check and the removal. It reports false when the stack is empty or claim
// refuses.
func (s *UndoStack[A]) PopIf(claim func(A) bool) (A, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero A
	if len(s.items) == 0 {
		return zero, false
	}
	last := s.items[len(s.items)-1]
	if !claim(last.action) {
		return zero, false
	}
	s.items = s.items[:len(s.items)-1]
	return last.action, true
}

// Peek returns the most recent action without removing it.
func (s *UndoStack[A]) Peek() (A, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var zero A
	if len(s.items) == 0 {
		return zero, false
	}
	return s.items[len(s.items)-1].action, true
}

// Len returns the number of recorded actions.
func (s *UndoStack[A]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Clear drops every recorded action.
func (s *UndoStack[A]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
}
