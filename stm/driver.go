package stm

import (
	"fmt"
)

type exitKind uint8

const (
	exitSucceed exitKind = iota
	exitFail
	exitRetry
	exitDie
	// exitInvalid ends an attempt whose journal went stale mid-run.
	exitInvalid
)

// exit is the untyped result of one run of a transaction. Defects are
// carried in value.
type exit struct {
	kind  exitKind
	value any
	err   error
}

func succeedExit(value any) exit {
	return exit{kind: exitSucceed, value: value}
}

func failExit(err error) exit {
	return exit{kind: exitFail, err: err}
}

func retryExit() exit {
	return exit{kind: exitRetry}
}

func dieExit(defect any) exit {
	return exit{kind: exitDie, value: defect}
}

// ExitKind tells how a single run of a transaction ended.
type ExitKind uint8

const (
	ExitSucceed ExitKind = iota
	ExitFail
	ExitRetry
	ExitDie
)

func (k ExitKind) String() string {
	switch k {
	case ExitSucceed:
		return "succeed"
	case ExitFail:
		return "fail"
	case ExitRetry:
		return "retry"
	case ExitDie:
		return "die"
	default:
		return fmt.Sprintf("ExitKind(%d)", uint8(k))
	}
}

// TExit is the result of running a transaction once against a journal.
type TExit[A any] struct {
	Kind   ExitKind
	Value  A
	Err    error
	Defect any
}

// Run executes s once against j without committing. The journal holds the
// reads and writes s made, and Atomically would commit it for a Succeed or
// Fail exit.
func Run[A any](j *Journal, fiberID FiberID, s STM[A]) TExit[A] {
	ex := newDriver(j, fiberID, 0).run(s.op)
	switch ex.kind {
	case exitSucceed:
		return TExit[A]{Kind: ExitSucceed, Value: cast[A](ex.value)}
	case exitFail:
		return TExit[A]{Kind: ExitFail, Err: ex.err}
	case exitDie:
		return TExit[A]{Kind: ExitDie, Defect: ex.value}
	default:
		return TExit[A]{Kind: ExitRetry}
	}
}

type contKind uint8

const (
	contSuccess contKind = iota
	contFailure
	contRetry
	contEnv
)

type cont struct {
	kind      contKind
	onSuccess func(any) op
	onFailure func(error) op
	onRetry   func() op
}

// driver interprets a transaction with explicit continuation and
// environment stacks, so nesting depth is bounded by memory rather than
// by the goroutine stack.
type driver struct {
	tx            txn
	conts         []cont
	envs          []any
	validateEvery int
	steps         int
}

func newDriver(j *Journal, fiberID FiberID, validateEvery int) *driver {
	return &driver{
		tx:            txn{journal: j, fiberID: fiberID},
		validateEvery: validateEvery,
	}
}

func (d *driver) run(root op) (result exit) {
	defer func() {
		if r := recover(); r != nil {
			result = dieExit(r)
		}
	}()

	curr := root
	for {
		var ex exit
		switch o := curr.(type) {
		case *opSucceedNow:
			ex = succeedExit(o.value)
		case *opSucceed:
			ex = succeedExit(o.thunk())
		case *opEffect:
			ex = o.run(&d.tx)
			if d.stale() {
				return exit{kind: exitInvalid}
			}
		case *opOnSuccess:
			d.conts = append(d.conts, cont{kind: contSuccess, onSuccess: o.k})
			curr = o.first
			continue
		case *opOnFailure:
			d.conts = append(d.conts, cont{kind: contFailure, onFailure: o.k})
			curr = o.first
			continue
		case *opOnRetry:
			d.conts = append(d.conts, cont{kind: contRetry, onRetry: o.k})
			curr = o.first
			continue
		case *opProvideSome:
			d.envs = append(d.envs, d.tx.env)
			d.tx.env = o.f(d.tx.env)
			d.conts = append(d.conts, cont{kind: contEnv})
			curr = o.first
			continue
		case nil:
			ex = dieExit(ErrNilOperation)
		default:
			ex = dieExit(fmt.Errorf("stm: unknown operation %T", o))
		}

		next, done := d.unwind(ex)
		if done {
			return ex
		}
		curr = next
	}
}

// unwind pops continuations until one handles ex. Success skips failure
// and retry handlers, failure skips success and retry handlers, and so on.
// A defect is never handled.
func (d *driver) unwind(ex exit) (op, bool) {
	if ex.kind == exitDie {
		return nil, true
	}
	for len(d.conts) > 0 {
		top := len(d.conts) - 1
		c := d.conts[top]
		d.conts[top] = cont{}
		d.conts = d.conts[:top]

		switch {
		case c.kind == contEnv:
			last := len(d.envs) - 1
			d.tx.env = d.envs[last]
			d.envs[last] = nil
			d.envs = d.envs[:last]
		case c.kind == contSuccess && ex.kind == exitSucceed:
			return c.onSuccess(ex.value), false
		case c.kind == contFailure && ex.kind == exitFail:
			return c.onFailure(ex.err), false
		case c.kind == contRetry && ex.kind == exitRetry:
			return c.onRetry(), false
		}
	}
	return nil, true
}

// stale reports, every validateEvery effects, whether a commit has already
// invalidated the journal.
func (d *driver) stale() bool {
	if d.validateEvery <= 0 {
		return false
	}
	d.steps++
	return d.steps%d.validateEvery == 0 && !d.tx.journal.isValid()
}
