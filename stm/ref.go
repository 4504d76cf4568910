package stm

import (
	"sync/atomic"

	"github.com/alexhholmes/rbstm/internal/stripe"
)

var (
	refIDs atomic.Uint64
	// locks guards every ref's waiter table and serializes commits whose
	// journals share a stripe.
	locks = stripe.New(stripe.DefaultCount)
)

// Versioned is a committed value paired with the number of commits that
// have written its ref.
type Versioned[A any] struct {
	Value   A
	Version uint64
}

// atomicRef is the untyped view of a Ref used by journals.
type atomicRef interface {
	id() uint64
	load() (value any, version uint64)
	version() uint64
	// store and the todo methods require the ref's stripe lock.
	store(value any)
	addTodo(txn TxnID, todo func()) bool
	removeTodo(txn TxnID)
	drainTodos(into map[TxnID]func())
}

// TRef is a transactional reference. Ref is the primitive implementation.
// Fold, FoldAll, Dimap and ReadOnly derive views over another TRef.
type TRef[A any] interface {
	Get() STM[A]
	Set(value A) STM[Unit]
	modify(f func(A) (any, A, error)) STM[any]
}

// Ref is a transactional cell. Reads and writes inside a transaction go
// through the transaction's journal and only reach the Ref on commit.
type Ref[A any] struct {
	refID     uint64
	versioned atomic.Pointer[Versioned[A]]
	todo      map[TxnID]func()
}

// NewRef creates a Ref outside of any transaction.
func NewRef[A any](value A) *Ref[A] {
	r := &Ref[A]{refID: refIDs.Add(1)}
	r.versioned.Store(&Versioned[A]{Value: value})
	return r
}

// MakeRef creates a Ref inside a transaction. The Ref is journaled as
// new, so committing the transaction counts as its first write.
func MakeRef[A any](value A) STM[*Ref[A]] {
	return MakeRefWith(func() A { return value })
}

// MakeRefWith is MakeRef with a lazily computed initial value.
func MakeRefWith[A any](f func() A) STM[*Ref[A]] {
	return effect[*Ref[A]](func(tx *txn) exit {
		r := NewRef(f())
		tx.journal.track(r, true)
		return succeedExit(r)
	})
}

// ID returns the identity of the ref. Ids are unique within the process.
func (r *Ref[A]) ID() uint64 {
	return r.refID
}

// Get reads the ref.
func (r *Ref[A]) Get() STM[A] {
	return effect[A](func(tx *txn) exit {
		return succeedExit(tx.journal.entry(r).newValue)
	})
}

// Set writes value to the ref.
func (r *Ref[A]) Set(value A) STM[Unit] {
	return effect[Unit](func(tx *txn) exit {
		tx.journal.entry(r).set(value)
		return succeedExit(Unit{})
	})
}

// UnsafeGet returns the last committed value without a transaction.
func (r *Ref[A]) UnsafeGet() A {
	return r.versioned.Load().Value
}

// Versioned returns the last committed value and its version.
func (r *Ref[A]) Versioned() Versioned[A] {
	return *r.versioned.Load()
}

func (r *Ref[A]) modify(f func(A) (any, A, error)) STM[any] {
	return effect[any](func(tx *txn) exit {
		e := tx.journal.entry(r)
		b, a, err := f(cast[A](e.newValue))
		if err != nil {
			return failExit(err)
		}
		e.set(a)
		return succeedExit(b)
	})
}

func (r *Ref[A]) id() uint64 {
	return r.refID
}

func (r *Ref[A]) load() (any, uint64) {
	v := r.versioned.Load()
	return v.Value, v.Version
}

func (r *Ref[A]) version() uint64 {
	return r.versioned.Load().Version
}

func (r *Ref[A]) store(value any) {
	cur := r.versioned.Load()
	r.versioned.Store(&Versioned[A]{
		Value:   cast[A](value),
		Version: cur.Version + 1,
	})
}

func (r *Ref[A]) addTodo(txn TxnID, todo func()) bool {
	if r.todo == nil {
		r.todo = make(map[TxnID]func())
	}
	if _, ok := r.todo[txn]; ok {
		return false
	}
	r.todo[txn] = todo
	return true
}

func (r *Ref[A]) removeTodo(txn TxnID) {
	delete(r.todo, txn)
}

func (r *Ref[A]) drainTodos(into map[TxnID]func()) {
	for txn, todo := range r.todo {
		into[txn] = todo
	}
	clear(r.todo)
}

// Modify applies f to the ref's value, stores the second result and
// returns the first.
func Modify[A, B any](ref TRef[A], f func(A) (B, A)) STM[B] {
	return Map(ref.modify(func(a A) (any, A, error) {
		b, next := f(a)
		return b, next, nil
	}), cast[B])
}

// Update replaces the ref's value with f of it.
func Update[A any](ref TRef[A], f func(A) A) STM[Unit] {
	return As(ref.modify(func(a A) (any, A, error) {
		return nil, f(a), nil
	}), Unit{})
}

// UpdateAndGet is Update returning the new value.
func UpdateAndGet[A any](ref TRef[A], f func(A) A) STM[A] {
	return Modify(ref, func(a A) (A, A) {
		next := f(a)
		return next, next
	})
}

// GetAndUpdate is Update returning the old value.
func GetAndUpdate[A any](ref TRef[A], f func(A) A) STM[A] {
	return Modify(ref, func(a A) (A, A) {
		return a, f(a)
	})
}

// GetAndSet writes value and returns the old value.
func GetAndSet[A any](ref TRef[A], value A) STM[A] {
	return Modify(ref, func(a A) (A, A) {
		return a, value
	})
}
