// Package slots tracks a bounded set of in-flight ids in a fixed array of
// atomics, so registering and releasing never allocate or lock.
package slots

import (
	"errors"
	"math"
	"sync/atomic"
)

var ErrFull = errors.New("all slots are in use")

// Table holds up to a fixed number of non-zero ids. A zero slot is free.
type Table struct {
	slots  []atomic.Uint64
	active atomic.Int32
}

// New creates a table with room for size ids.
func New(size int) *Table {
	return &Table{slots: make([]atomic.Uint64, max(size, 1))}
}

// Cap returns the number of slots.
func (t *Table) Cap() int {
	return len(t.slots)
}

// Register claims a free slot for id and returns its index. The scan
// starts at a position derived from id so concurrent registrations rarely
// race for the same slot.
func (t *Table) Register(id uint64) (int, error) {
	if id == 0 {
		panic("slots: id must be non-zero")
	}
	n := len(t.slots)
	start := int(id % uint64(n))
	for i := 0; i < n; i++ {
		slot := (start + i) % n
		if t.slots[slot].CompareAndSwap(0, id) {
			t.active.Add(1)
			return slot, nil
		}
	}
	return -1, ErrFull
}

// Release frees slot.
func (t *Table) Release(slot int) {
	if t.slots[slot].Swap(0) != 0 {
		t.active.Add(-1)
	}
}

// Active returns the number of claimed slots.
func (t *Table) Active() int {
	return int(t.active.Load())
}

// Oldest returns the smallest registered id.
func (t *Table) Oldest() (uint64, bool) {
	if t.active.Load() == 0 {
		return 0, false
	}
	oldest := uint64(math.MaxUint64)
	for i := range t.slots {
		if id := t.slots[i].Load(); id != 0 && id < oldest {
			oldest = id
		}
	}
	return oldest, oldest != math.MaxUint64
}
