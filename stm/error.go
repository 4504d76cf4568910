package stm

import (
	"errors"
	"fmt"
)

var (
	ErrReadOnlyRef  = errors.New("ref is read-only")
	ErrEnvironment  = errors.New("environment has the wrong type")
	ErrNilOperation = errors.New("transaction has no operation")
	ErrNilRuntime   = errors.New("runtime is nil")
	ErrNilFailure   = errors.New("transaction failed with a nil error")

	ErrTooManyTransactions = errors.New("too many concurrent transactions (increase max concurrent)")
)

// Defect is the panic value raised by Atomically when a transaction dies.
// Value holds whatever the transaction died with: the argument to Die, or
// the value recovered from a panic inside user code.
type Defect struct {
	Value any
}

func (d *Defect) Error() string {
	return fmt.Sprintf("stm: transaction died: %v", d.Value)
}

// Unwrap exposes the defect when it is itself an error.
func (d *Defect) Unwrap() error {
	if err, ok := d.Value.(error); ok {
		return err
	}
	return nil
}
