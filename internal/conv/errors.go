package conv

import (
	"fmt"
)

// FatalError is the panic value raised when a backend call fails. Backend
// failures are programming or configuration errors and are not retried.
type FatalError struct {
	Op   string // Operator ID
	Call string // Failing backend call
	Err  error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("conv %s: %s failed: %v", e.Op, e.Call, e.Err)
}

// Unwrap returns the backend error.
func (e *FatalError) Unwrap() error {
	return e.Err
}

// PreconditionError is the panic value raised when Forward is called with
// operands that break the operator's contract.
type PreconditionError struct {
	Op     string
	Detail string
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	return fmt.Sprintf("conv %s: precondition failed: %s", e.Op, e.Detail)
}

func (op *Operator) check(call string, err error) {
	if err != nil {
		panic(&FatalError{Op: op.id, Call: call, Err: err})
	}
}

func (op *Operator) require(cond bool, format string, args ...any) {
	if !cond {
		panic(&PreconditionError{Op: op.id, Detail: fmt.Sprintf(format, args...)})
	}
}
