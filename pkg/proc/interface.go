package proc

import (
	"github.com/go-delve/deet/pkg/symbols"
)

// WordReadWriter reads and writes the memory of the target one machine
// word at a time, the unit the OS tracing facility works in.
type WordReadWriter interface {
	PeekWord(addr uint64) (uint64, error)
	PokeWord(addr uint64, word uint64) error
}

// Tracee is the set of OS tracing primitives the process control layer
// needs: memory and register access, single stepping and resuming.
// SingleStep and Continue block until the process changes state.
type Tracee interface {
	WordReadWriter
	Registers() (Registers, error)
	SetPC(pc uint64) error
	// StopSignal is the signal that caused the last stop, 0 if the process
	// is not stopped.
	StopSignal() Signal
	SingleStep() (Status, error)
	Continue() (Status, error)
}

// Inferior is a traced process under debugger control.
type Inferior interface {
	Tracee
	Pid() int
	State() State
	// Resume continues the process past any breakpoint it is stopped at
	// and waits for the next stop.
	Resume(bps *BreakpointTable) (Status, error)
	// Kill terminates and reaps the process. Killing an exited process is
	// a no-op.
	Kill() error
}

// SymbolLookup resolves code addresses to functions and source lines.
type SymbolLookup interface {
	FunctionForPC(pc uint64) (*symbols.Function, bool)
	LineForPC(pc uint64) (*symbols.Line, bool)
}
