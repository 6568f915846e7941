package store

import "sync"

// HistoryBuffer is an append-only log with snapshot reads. When a capacity
// is set the oldest entries are dropped once it is exceeded.
type HistoryBuffer[T any] struct {
	mu       sync.RWMutex
	entries  []T
	capacity int
}

// NewHistoryBuffer creates a buffer. A capacity of zero or less is unbounded.
func NewHistoryBuffer[T any](capacity int) *HistoryBuffer[T] {
	return &HistoryBuffer[T]{capacity: capacity}
}

// Append adds entries in order
func (h *HistoryBuffer[T]) Append(entries ...T) {
	if len(entries) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, entries...)
	if h.capacity > 0 && len(h.entries) > h.capacity {
		drop := len(h.entries) - h.capacity
		kept := make([]T, h.capacity)
		copy(kept, h.entries[drop:])
		h.entries = kept
	}
}

// Replace overwrites every buffered entry for which match returns true and
// reports how many were replaced. Order and length are unchanged.
func (h *HistoryBuffer[T]) Replace(match func(T) bool, entry T) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	replaced := 0
	for i := range h.entries {
		if match(h.entries[i]) {
			h.entries[i] = entry
			replaced++
		}
	}
	return replaced
}

// Snapshot returns a copy of the current entries. Later appends do not
// affect a snapshot already taken.
func (h *HistoryBuffer[T]) Snapshot() []T {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]T, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of buffered entries
func (h *HistoryBuffer[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Reset drops every entry
func (h *HistoryBuffer[T]) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
}
