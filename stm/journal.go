package stm

import (
	"github.com/alexhholmes/rbstm/internal/stripe"
)

// entry records one ref's participation in a transaction: the version the
// first read saw and the value the transaction currently holds for it.
type entry struct {
	ref       atomicRef
	expected  uint64
	initial   any
	newValue  any
	isNew     bool
	isChanged bool
}

func (e *entry) set(value any) {
	e.newValue = value
	e.isChanged = true
}

// isValid reports whether no commit has written the ref since it was read.
func (e *entry) isValid() bool {
	return e.ref.version() == e.expected
}

func (e *entry) reset() {
	e.newValue = e.initial
	e.isChanged = e.isNew
}

// Journal is the transaction-local log of every ref an attempt has
// touched. A Journal belongs to one goroutine.
type Journal struct {
	entries map[uint64]*entry
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{entries: make(map[uint64]*entry)}
}

// Len returns the number of refs in the journal.
func (j *Journal) Len() int {
	return len(j.entries)
}

// Changed returns the number of refs the journal would write on commit.
func (j *Journal) Changed() int {
	n := 0
	for _, e := range j.entries {
		if e.isChanged {
			n++
		}
	}
	return n
}

func (j *Journal) track(ref atomicRef, isNew bool) *entry {
	value, version := ref.load()
	e := &entry{
		ref:       ref,
		expected:  version,
		initial:   value,
		newValue:  value,
		isNew:     isNew,
		isChanged: isNew,
	}
	j.entries[ref.id()] = e
	return e
}

// entry returns the journal entry for ref, reading the ref on first touch.
func (j *Journal) entry(ref atomicRef) *entry {
	if e, ok := j.entries[ref.id()]; ok {
		return e
	}
	return j.track(ref, false)
}

type analysis uint8

const (
	analysisReadOnly analysis = iota
	analysisReadWrite
	analysisInvalid
)

func (a analysis) String() string {
	switch a {
	case analysisReadOnly:
		return "read-only"
	case analysisReadWrite:
		return "read-write"
	default:
		return "invalid"
	}
}

// analyze classifies the journal in one pass. For an invalid journal it
// also returns the id of the first stale ref found.
func (j *Journal) analyze() (analysis, uint64) {
	result := analysisReadOnly
	for id, e := range j.entries {
		if !e.isValid() {
			return analysisInvalid, id
		}
		if e.isChanged {
			result = analysisReadWrite
		}
	}
	return result, 0
}

func (j *Journal) firstInvalid() (uint64, bool) {
	for id, e := range j.entries {
		if !e.isValid() {
			return id, true
		}
	}
	return 0, false
}

func (j *Journal) isValid() bool {
	_, invalid := j.firstInvalid()
	return !invalid
}

// commit publishes every changed entry. The caller holds the journal's
// stripes.
func (j *Journal) commit() {
	for _, e := range j.entries {
		if e.isChanged {
			e.ref.store(e.newValue)
		}
	}
}

// collectTodos removes the waiters of every journaled ref, one per
// transaction. The caller holds the journal's stripes.
func (j *Journal) collectTodos() map[TxnID]func() {
	todos := make(map[TxnID]func())
	for _, e := range j.entries {
		e.ref.drainTodos(todos)
	}
	return todos
}

// lock takes the stripes of every journaled ref.
func (j *Journal) lock() (unlock func()) {
	return locks.Lock(j.stripes())
}

func (j *Journal) stripes() stripe.Set {
	refs := make([]atomicRef, 0, len(j.entries))
	for _, e := range j.entries {
		refs = append(refs, e.ref)
	}
	return stripesOf(refs)
}

// untrackedTodoTargets returns the journaled refs not yet in tracked.
func (j *Journal) untrackedTodoTargets(tracked map[uint64]atomicRef) []atomicRef {
	var refs []atomicRef
	for id, e := range j.entries {
		if _, ok := tracked[id]; !ok {
			refs = append(refs, e.ref)
		}
	}
	return refs
}

type snapshot struct {
	newValue  any
	isChanged bool
}

type checkpoint map[uint64]snapshot

func (j *Journal) checkpoint() checkpoint {
	cp := make(checkpoint, len(j.entries))
	for id, e := range j.entries {
		cp[id] = snapshot{newValue: e.newValue, isChanged: e.isChanged}
	}
	return cp
}

// rollback discards writes made since cp was taken. Entries added later
// keep their expected versions so the reads behind them are still
// validated and still wake the transaction.
func (j *Journal) rollback(cp checkpoint) {
	for id, e := range j.entries {
		if s, ok := cp[id]; ok {
			e.newValue, e.isChanged = s.newValue, s.isChanged
			continue
		}
		e.reset()
	}
}

func stripesOf(refs []atomicRef) stripe.Set {
	ids := make([]uint64, len(refs))
	for i, ref := range refs {
		ids[i] = ref.id()
	}
	return locks.Collect(ids)
}
