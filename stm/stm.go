// Package stm implements software transactional memory over Refs.
//
// An STM value describes a transaction. Nothing happens until it is run
// with Atomically, which executes it against a private journal and commits
// the journal when no other commit has written a ref it read. A transaction
// that calls Retry blocks until one of the refs it read changes.
//
// Transactions may be rerun any number of times, so the functions passed to
// combinators must not have side effects outside of Refs.
package stm

import (
	"fmt"
)

// Unit is the result of transactions run only for their effect.
type Unit = struct{}

// TxnID identifies one blocked Atomically call in ref waiter tables.
type TxnID uint64

// FiberID identifies the goroutine running a transaction.
type FiberID uint64

// STM is a transaction producing an A, failing with an error, retrying, or
// dying with a defect. STM values are immutable and can be run repeatedly.
type STM[A any] struct {
	op op
}

type op interface {
	isOp()
}

// txn is the state an effect sees while the driver runs it.
type txn struct {
	journal *Journal
	fiberID FiberID
	env     any
}

type (
	opSucceedNow struct{ value any }
	opSucceed    struct{ thunk func() any }
	opEffect     struct{ run func(tx *txn) exit }
	opOnSuccess  struct {
		first op
		k     func(any) op
	}
	opOnFailure struct {
		first op
		k     func(error) op
	}
	opOnRetry struct {
		first op
		k     func() op
	}
	opProvideSome struct {
		first op
		f     func(any) any
	}
)

func (*opSucceedNow) isOp()  {}
func (*opSucceed) isOp()     {}
func (*opEffect) isOp()      {}
func (*opOnSuccess) isOp()   {}
func (*opOnFailure) isOp()   {}
func (*opOnRetry) isOp()     {}
func (*opProvideSome) isOp() {}

func effect[A any](f func(tx *txn) exit) STM[A] {
	return STM[A]{op: &opEffect{run: f}}
}

// cast converts an untyped result back to A. A nil interface becomes A's
// zero value.
func cast[A any](v any) A {
	if v == nil {
		var zero A
		return zero
	}
	return v.(A)
}

// Succeed returns a transaction producing value.
func Succeed[A any](value A) STM[A] {
	return STM[A]{op: &opSucceedNow{value: value}}
}

// SucceedWith returns a transaction producing f's result, computed each
// time the transaction runs.
func SucceedWith[A any](f func() A) STM[A] {
	return STM[A]{op: &opSucceed{thunk: func() any { return f() }}}
}

// Fail returns a transaction failing with err. Failing with a nil error
// dies with ErrNilFailure.
func Fail[A any](err error) STM[A] {
	return effect[A](func(*txn) exit {
		if err == nil {
			return dieExit(ErrNilFailure)
		}
		return failExit(err)
	})
}

// Die returns a transaction that dies with defect. Atomically panics with
// a *Defect wrapping it.
func Die[A any](defect any) STM[A] {
	return effect[A](func(*txn) exit {
		return dieExit(defect)
	})
}

// Retry abandons the transaction. Atomically reruns it after another
// commit changes a ref it read.
func Retry[A any]() STM[A] {
	return effect[A](func(*txn) exit {
		return retryExit()
	})
}

// FromFunc returns a transaction producing f's result, failing when f
// returns an error. f runs each time the transaction runs.
func FromFunc[A any](f func() (A, error)) STM[A] {
	return effect[A](func(*txn) exit {
		a, err := f()
		if err != nil {
			return failExit(err)
		}
		return succeedExit(a)
	})
}

// Check retries unless cond holds.
func Check(cond bool) STM[Unit] {
	if cond {
		return Succeed(Unit{})
	}
	return Retry[Unit]()
}

// Suspend defers building a transaction until it runs.
func Suspend[A any](f func() STM[A]) STM[A] {
	return FlatMap(Succeed(Unit{}), func(Unit) STM[A] {
		return f()
	})
}

// CurrentFiberID returns the id of the goroutine running the transaction.
func CurrentFiberID() STM[FiberID] {
	return effect[FiberID](func(tx *txn) exit {
		return succeedExit(tx.fiberID)
	})
}

// FlatMap runs s then the transaction f builds from its result.
func FlatMap[A, B any](s STM[A], f func(A) STM[B]) STM[B] {
	return STM[B]{op: &opOnSuccess{
		first: s.op,
		k: func(v any) op {
			return f(cast[A](v)).op
		},
	}}
}

// Map transforms the result of s.
func Map[A, B any](s STM[A], f func(A) B) STM[B] {
	return STM[B]{op: &opOnSuccess{
		first: s.op,
		k: func(v any) op {
			return &opSucceedNow{value: f(cast[A](v))}
		},
	}}
}

// As replaces the result of s with value.
func As[A, B any](s STM[A], value B) STM[B] {
	return Map(s, func(A) B { return value })
}

// Then runs first and then next, keeping next's result.
func Then[A, B any](first STM[A], next STM[B]) STM[B] {
	return FlatMap(first, func(A) STM[B] { return next })
}

// ZipWith runs a then b and combines their results.
func ZipWith[A, B, C any](a STM[A], b STM[B], f func(A, B) C) STM[C] {
	return FlatMap(a, func(x A) STM[C] {
		return Map(b, func(y B) C { return f(x, y) })
	})
}

// ForEach runs f for every element of xs in order and collects the
// results.
func ForEach[A, B any](xs []A, f func(A) STM[B]) STM[[]B] {
	var loop func(i int, acc []B) STM[[]B]
	loop = func(i int, acc []B) STM[[]B] {
		if i == len(xs) {
			return Succeed(acc)
		}
		return FlatMap(f(xs[i]), func(b B) STM[[]B] {
			return loop(i+1, append(acc, b))
		})
	}
	return Suspend(func() STM[[]B] {
		return loop(0, make([]B, 0, len(xs)))
	})
}

// CatchAll recovers from any failure of s. Writes made by s stay in the
// journal.
func CatchAll[A any](s STM[A], f func(error) STM[A]) STM[A] {
	return STM[A]{op: &opOnFailure{
		first: s.op,
		k: func(err error) op {
			return f(err).op
		},
	}}
}

// MapError transforms the error s fails with.
func MapError[A any](s STM[A], f func(error) error) STM[A] {
	return CatchAll(s, func(err error) STM[A] {
		return Fail[A](f(err))
	})
}

// Result is the outcome of a transaction that may fail.
type Result[A any] struct {
	Value A
	Err   error
}

// Either turns the failure of s into a successful Result.
func Either[A any](s STM[A]) STM[Result[A]] {
	return CatchAll(
		Map(s, func(a A) Result[A] { return Result[A]{Value: a} }),
		func(err error) STM[Result[A]] { return Succeed(Result[A]{Err: err}) },
	)
}

// Ensuring runs finalizer after s whether s succeeds or fails.
func Ensuring[A any](s STM[A], finalizer STM[Unit]) STM[A] {
	return FlatMap(
		CatchAll(s, func(err error) STM[A] {
			return Then(finalizer, Fail[A](err))
		}),
		func(a A) STM[A] {
			return As(finalizer, a)
		},
	)
}

// abandoned marks a branch of OrElse or OrTry that did not complete.
type abandoned struct{}

// OrElse runs left, and if it fails or retries, discards its writes and
// runs right instead.
func OrElse[A any](left, right STM[A]) STM[A] {
	return fallback(left, right, true)
}

// OrTry runs left, and if it retries, discards its writes and runs right
// instead. Failures of left are not caught.
func OrTry[A any](left, right STM[A]) STM[A] {
	return fallback(left, right, false)
}

func fallback[A any](left, right STM[A], catchFailure bool) STM[A] {
	give := func() op { return &opSucceedNow{value: abandoned{}} }
	guarded := left.op
	if catchFailure {
		guarded = &opOnFailure{first: guarded, k: func(error) op { return give() }}
	}
	guarded = &opOnRetry{first: guarded, k: give}

	mark := &opEffect{run: func(tx *txn) exit {
		return succeedExit(tx.journal.checkpoint())
	}}
	return STM[A]{op: &opOnSuccess{first: mark, k: func(v any) op {
		cp := v.(checkpoint)
		return &opOnSuccess{first: guarded, k: func(v any) op {
			if _, ok := v.(abandoned); !ok {
				return &opSucceedNow{value: v}
			}
			return &opOnSuccess{
				first: &opEffect{run: func(tx *txn) exit {
					tx.journal.rollback(cp)
					return succeedExit(nil)
				}},
				k: func(any) op { return right.op },
			}
		}}
	}}}
}

// Environment returns the value provided to the enclosing Provide or
// ProvideSome. The transaction dies when that value is not an R.
func Environment[R any]() STM[R] {
	return effect[R](func(tx *txn) exit {
		r, ok := tx.env.(R)
		if !ok {
			var zero R
			return dieExit(fmt.Errorf("%w: want %T, have %T", ErrEnvironment, zero, tx.env))
		}
		return succeedExit(r)
	})
}

// Access reads the environment through f.
func Access[R, A any](f func(R) A) STM[A] {
	return Map(Environment[R](), f)
}

// Provide runs s with env as its environment.
func Provide[A any](s STM[A], env any) STM[A] {
	return ProvideSome(s, func(any) any { return env })
}

// ProvideSome runs s with f of the current environment as its
// environment.
func ProvideSome[A any](s STM[A], f func(env any) any) STM[A] {
	return STM[A]{op: &opProvideSome{first: s.op, f: f}}
}
