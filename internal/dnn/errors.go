package dnn

import (
	"errors"
	"fmt"
)

// Status is a backend call result code.
type Status int

// Status codes returned by backend calls.
const (
	StatusSuccess Status = iota
	StatusNotInitialized
	StatusAllocFailed
	StatusBadParam
	StatusInternalError
	StatusNotSupported
	StatusExecutionFailed
)

// String returns the status name in the conventional upper-case form.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "DNN_STATUS_SUCCESS"
	case StatusNotInitialized:
		return "DNN_STATUS_NOT_INITIALIZED"
	case StatusAllocFailed:
		return "DNN_STATUS_ALLOC_FAILED"
	case StatusBadParam:
		return "DNN_STATUS_BAD_PARAM"
	case StatusInternalError:
		return "DNN_STATUS_INTERNAL_ERROR"
	case StatusNotSupported:
		return "DNN_STATUS_NOT_SUPPORTED"
	case StatusExecutionFailed:
		return "DNN_STATUS_EXECUTION_FAILED"
	default:
		return fmt.Sprintf("DNN_STATUS(%d)", int(s))
	}
}

// Sentinel errors, one per non-success status.
var (
	ErrNotInitialized  = errors.New("descriptor not initialized")
	ErrAllocFailed     = errors.New("allocation failed")
	ErrBadParam        = errors.New("bad parameter")
	ErrInternal        = errors.New("internal error")
	ErrNotSupported    = errors.New("not supported")
	ErrExecutionFailed = errors.New("execution failed")
)

// Error is returned by every failing backend call.
type Error struct {
	Call   string // Backend call that failed, e.g. "SetFilter4dDescriptor"
	Status Status
	Detail string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s", e.Call, e.Status)
	}
	return fmt.Sprintf("%s: %s: %s", e.Call, e.Status, e.Detail)
}

// Is matches the sentinel error for the status.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Status)
}

func sentinel(s Status) error {
	switch s {
	case StatusNotInitialized:
		return ErrNotInitialized
	case StatusAllocFailed:
		return ErrAllocFailed
	case StatusBadParam:
		return ErrBadParam
	case StatusInternalError:
		return ErrInternal
	case StatusNotSupported:
		return ErrNotSupported
	case StatusExecutionFailed:
		return ErrExecutionFailed
	default:
		return nil
	}
}

// Errorf builds an *Error for call with a formatted detail message.
func Errorf(call string, status Status, format string, args ...any) *Error {
	return &Error{Call: call, Status: status, Detail: fmt.Sprintf(format, args...)}
}

// StatusOf extracts the status from err. Nil maps to StatusSuccess and
// errors that do not come from a backend map to StatusInternalError.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return StatusInternalError
}
