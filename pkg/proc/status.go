package proc

import (
	"fmt"
	"syscall"
)

// Signal is an OS signal number.
type Signal = syscall.Signal

// State is the lifecycle state of an Inferior.
type State uint8

const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
	StateExited
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateExited:
		return "exited"
	case StateTerminated:
		return "terminated"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Alive returns true if the process has not exited or been terminated.
func (s State) Alive() bool {
	return s == StateRunning || s == StateStopped
}

// StatusKind is the category of a Status.
type StatusKind uint8

const (
	// StatusExited means the process exited normally.
	StatusExited StatusKind = iota
	// StatusSignaled means the process was terminated by a signal.
	StatusSignaled
	// StatusStopped means the process is stopped and can be inspected.
	StatusStopped
)

// Status is the result of waiting on a process. It describes a single
// state change and is not kept after it has been reported.
type Status struct {
	Kind     StatusKind
	ExitCode int
	Signal   Signal
	PC       uint64
}

// Exited returns the status of a process that exited with code.
func Exited(code int) Status {
	return Status{Kind: StatusExited, ExitCode: code}
}

// Signaled returns the status of a process terminated by sig.
func Signaled(sig Signal) Status {
	return Status{Kind: StatusSignaled, Signal: sig}
}

// Stopped returns the status of a process stopped by sig at pc.
func Stopped(sig Signal, pc uint64) Status {
	return Status{Kind: StatusStopped, Signal: sig, PC: pc}
}

// Gone returns true if the process no longer exists after this status.
func (s Status) Gone() bool {
	return s.Kind == StatusExited || s.Kind == StatusSignaled
}

func (s Status) String() string {
	switch s.Kind {
	case StatusExited:
		return fmt.Sprintf("exited with status %d", s.ExitCode)
	case StatusSignaled:
		return fmt.Sprintf("terminated by signal %s", SignalName(s.Signal))
	case StatusStopped:
		return fmt.Sprintf("stopped by signal %s at %#x", SignalName(s.Signal), s.PC)
	}
	return fmt.Sprintf("Status(%d)", s.Kind)
}

var signalNames = map[Signal]string{
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGBUS:  "SIGBUS",
	syscall.SIGFPE:  "SIGFPE",
	syscall.SIGHUP:  "SIGHUP",
	syscall.SIGILL:  "SIGILL",
	syscall.SIGINT:  "SIGINT",
	syscall.SIGKILL: "SIGKILL",
	syscall.SIGPIPE: "SIGPIPE",
	syscall.SIGQUIT: "SIGQUIT",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGTERM: "SIGTERM",
	syscall.SIGTRAP: "SIGTRAP",
}

// SignalName returns the conventional name of sig, e.g. SIGTRAP.
func SignalName(sig Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return fmt.Sprintf("signal %d", int(sig))
}
