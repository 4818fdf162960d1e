package proc

import (
	"errors"
	"fmt"
)

// SpawnError is returned when the target executable could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not launch process %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// TraceError is returned when a tracing request, a register access or a
// wait on the process failed. A process that returned a TraceError is
// unusable and should be killed.
type TraceError struct {
	Op  string
	Pid int
	Err error
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("%s failed on process %d: %v", e.Op, e.Pid, e.Err)
}

func (e *TraceError) Unwrap() error { return e.Err }

// InvalidAddressError represents the result of
// attempting to read or write an address that is not mapped or
// not writable in the target.
type InvalidAddressError struct {
	Addr uint64
	Err  error
}

func (e *InvalidAddressError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid address %#x: %v", e.Addr, e.Err)
	}
	return fmt.Sprintf("invalid address %#x", e.Addr)
}

func (e *InvalidAddressError) Unwrap() error { return e.Err }

// ErrProcessExited indicates that the process has exited and can not be
// operated on.
type ErrProcessExited struct {
	Pid    int
	Status int
}

func (pe ErrProcessExited) Error() string {
	return fmt.Sprintf("Process %d has exited with status %d", pe.Pid, pe.Status)
}

// InternalError reports a condition the process control protocol does
// not model, for example an unexpected wait status. It is not
// recoverable.
type InternalError struct {
	Pid int
	Msg string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error on process %d: %s", e.Pid, e.Msg)
}

// IsInvalidAddress returns true if err is or wraps an InvalidAddressError.
func IsInvalidAddress(err error) bool {
	var iae *InvalidAddressError
	return errors.As(err, &iae)
}
