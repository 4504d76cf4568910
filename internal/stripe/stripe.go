// Package stripe provides a fixed table of mutexes selected by hashing a
// 64-bit identifier. Callers that need several stripes at once must take
// them through Lock, which orders acquisition by stripe index so that two
// lockers can never deadlock.
package stripe

import (
	"encoding/binary"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sys/cpu"
)

const (
	// DefaultCount is the stripe count used when none is given.
	DefaultCount = 256
	// MinCount is the smallest table New will build.
	MinCount = 16
)

// padded keeps neighbouring stripes on separate cache lines.
type padded struct {
	sync.Mutex
	_ cpu.CacheLinePad
}

// Table is a power-of-two sized set of mutex stripes.
type Table struct {
	stripes []padded
	mask    uint64
}

// New creates a table with at least count stripes, rounded up to a power
// of two.
func New(count int) *Table {
	n := MinCount
	for n < count {
		n <<= 1
	}
	return &Table{
		stripes: make([]padded, n),
		mask:    uint64(n - 1),
	}
}

// Len returns the number of stripes.
func (t *Table) Len() int {
	return len(t.stripes)
}

// Index returns the stripe guarding id. Sequential ids are spread across
// the table by hashing.
func (t *Table) Index(id uint64) int {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], id)
	return int(xxhash.Sum64(buf[:]) & t.mask)
}

// Set is a sorted, duplicate free list of stripe indices.
type Set []int

// Collect builds the Set covering ids.
func (t *Table) Collect(ids []uint64) Set {
	set := make(Set, 0, len(ids))
	for _, id := range ids {
		set = append(set, t.Index(id))
	}
	return Normalize(set)
}

// Normalize sorts set in place and drops duplicates.
func Normalize(set Set) Set {
	slices.Sort(set)
	return slices.Compact(set)
}

// Lock acquires every stripe in set in ascending order and returns the
// function releasing them.
func (t *Table) Lock(set Set) (unlock func()) {
	for _, i := range set {
		t.stripes[i].Lock()
	}
	return func() {
		for j := len(set) - 1; j >= 0; j-- {
			t.stripes[set[j]].Unlock()
		}
	}
}
