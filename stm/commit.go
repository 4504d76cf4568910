package stm

import (
	"context"
	"sync/atomic"
)

var (
	txnIDs   atomic.Uint64
	fiberIDs atomic.Uint64
)

// Atomically runs s on the default runtime. See AtomicallyWith.
func Atomically[A any](ctx context.Context, s STM[A]) (A, error) {
	return AtomicallyWith(ctx, Default(), s)
}

// AtomicallyWith runs s until it commits and returns its result, or its
// error if it failed. A failed transaction still commits its writes.
//
// A transaction that retries blocks until a commit changes a ref it read,
// or until ctx is done, in which case ctx.Err() is returned. A transaction
// that dies makes AtomicallyWith panic with a *Defect.
func AtomicallyWith[A any](ctx context.Context, rt *Runtime, s STM[A]) (A, error) {
	var zero A
	if rt == nil {
		return zero, ErrNilRuntime
	}
	v, err := rt.atomically(ctx, s.op)
	if err != nil {
		return zero, err
	}
	return cast[A](v), nil
}

func (rt *Runtime) atomically(ctx context.Context, root op) (any, error) {
	fiberID := FiberID(fiberIDs.Add(1))
	if rt.fibers != nil {
		slot, err := rt.fibers.Register(uint64(fiberID))
		if err != nil {
			return nil, ErrTooManyTransactions
		}
		defer rt.fibers.Release(slot)
	}
	rt.active.Add(1)
	defer rt.active.Add(-1)

	w := &waiter{}
	defer w.release()

	for runs := 1; ; runs++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if threshold := rt.opts.retryWarnThreshold; threshold > 0 && runs-1 == threshold {
			rt.opts.logger.Warn("stm: transaction rerun repeatedly", "fiber", fiberID, "runs", runs)
		}

		ex, j := rt.attempt(fiberID, root)
		switch ex.kind {
		case exitInvalid:
			continue
		case exitRetry:
			rt.retries.Add(1)
			rt.metrics.retries.Inc()
			if !w.arm(j) {
				continue
			}
			rt.suspensions.Add(1)
			rt.metrics.suspensions.Inc()
			select {
			case <-w.wake:
			case <-ctx.Done():
				rt.cancellations.Add(1)
				rt.metrics.cancellations.Inc()
				rt.opts.logger.Info("stm: blocked transaction cancelled", "fiber", fiberID, "refs", j.Len())
				return nil, ctx.Err()
			}
		default:
			return rt.complete(fiberID, ex)
		}
	}
}

// attempt runs root once against a fresh journal and commits it when the
// exit calls for it. An exitInvalid result means the attempt conflicted
// with another commit and must be rerun.
func (rt *Runtime) attempt(fiberID FiberID, root op) (exit, *Journal) {
	j := NewJournal()
	ex := newDriver(j, fiberID, rt.opts.validateEvery).run(root)

	switch ex.kind {
	case exitInvalid:
		id, _ := j.firstInvalid()
		rt.recordConflict(id)
		return ex, j
	case exitRetry:
		return ex, j
	case exitDie:
		// A defect seen through stale reads may not be real.
		unlock := j.lock()
		id, stale := j.firstInvalid()
		unlock()
		if stale {
			rt.recordConflict(id)
			return exit{kind: exitInvalid}, j
		}
		return ex, j
	}

	var todos map[TxnID]func()
	unlock := j.lock()
	result, id := j.analyze()
	if result == analysisReadWrite {
		j.commit()
		todos = j.collectTodos()
	}
	unlock()

	switch result {
	case analysisInvalid:
		rt.recordConflict(id)
		return exit{kind: exitInvalid}, j
	case analysisReadWrite:
		rt.commits.Add(1)
		rt.metrics.commits.Inc()
		for _, todo := range todos {
			todo()
		}
	default:
		rt.readOnly.Add(1)
		rt.metrics.readOnly.Inc()
	}
	return ex, j
}

func (rt *Runtime) complete(fiberID FiberID, ex exit) (any, error) {
	switch ex.kind {
	case exitSucceed:
		return ex.value, nil
	case exitFail:
		return nil, ex.err
	}

	rt.defects.Add(1)
	rt.metrics.defects.Inc()
	rt.opts.logger.Error("stm: transaction died", "fiber", fiberID, "defect", ex.value)
	if d, ok := ex.value.(*Defect); ok {
		panic(d)
	}
	panic(&Defect{Value: ex.value})
}

// waiter parks one Atomically call between a retry and the next commit to
// a ref the retried attempt read.
type waiter struct {
	id      TxnID
	wake    chan struct{}
	done    atomic.Bool
	todo    func()
	tracked map[uint64]atomicRef
}

// arm registers the waiter on every ref in j. It reports false without
// registering when j is already stale, in which case the transaction
// should rerun at once.
func (w *waiter) arm(j *Journal) bool {
	if w.wake == nil {
		w.id = TxnID(txnIDs.Add(1))
		w.wake = make(chan struct{}, 1)
		w.tracked = make(map[uint64]atomicRef)
		w.todo = func() {
			if w.done.Load() {
				return
			}
			select {
			case w.wake <- struct{}{}:
			default:
			}
		}
	}
	select {
	case <-w.wake:
	default:
	}

	unlock := j.lock()
	defer unlock()
	if !j.isValid() {
		return false
	}
	for _, ref := range j.untrackedTodoTargets(w.tracked) {
		w.tracked[ref.id()] = ref
	}
	for _, e := range j.entries {
		e.ref.addTodo(w.id, w.todo)
	}
	return true
}

// release removes the waiter from every ref it was registered on.
func (w *waiter) release() {
	if len(w.tracked) == 0 {
		return
	}
	w.done.Store(true)

	refs := make([]atomicRef, 0, len(w.tracked))
	for _, ref := range w.tracked {
		refs = append(refs, ref)
	}
	unlock := locks.Lock(stripesOf(refs))
	for _, ref := range refs {
		ref.removeTodo(w.id)
	}
	unlock()
}
