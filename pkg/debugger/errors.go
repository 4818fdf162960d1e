package debugger

import (
	"errors"
	"fmt"
)

// ErrNoActiveProcess is returned by commands that need a process when
// there is none.
var ErrNoActiveProcess = errors.New("no process is being debugged, use run to start one")

// InvalidAddressSyntaxError is returned for `*<addr>` locations that are
// not hexadecimal numbers.
type InvalidAddressSyntaxError struct {
	Spec string
	Err  error
}

func (e *InvalidAddressSyntaxError) Error() string {
	return fmt.Sprintf("invalid address %q: %v", e.Spec, e.Err)
}

func (e *InvalidAddressSyntaxError) Unwrap() error { return e.Err }

// SymbolKind is the kind of location an UnresolvedSymbolError refers to.
type SymbolKind uint8

const (
	LineSymbol SymbolKind = iota
	FunctionSymbol
)

func (k SymbolKind) String() string {
	if k == LineSymbol {
		return "line"
	}
	return "function"
}

// UnresolvedSymbolError is returned when a line or function does not
// correspond to any code in the target.
type UnresolvedSymbolError struct {
	Kind SymbolKind
	Name string
}

func (e *UnresolvedSymbolError) Error() string {
	if e.Kind == LineSymbol {
		return fmt.Sprintf("could not find code for line %s", e.Name)
	}
	return fmt.Sprintf("could not find function %s", e.Name)
}

// BreakpointExistsError is returned when trying to set a breakpoint at an
// address that already has one.
type BreakpointExistsError struct {
	ID   int
	Addr uint64
}

func (bpe BreakpointExistsError) Error() string {
	return fmt.Sprintf("Breakpoint %d exists at %#x", bpe.ID, bpe.Addr)
}

// NoBreakpointError is returned when trying to
// clear a breakpoint that does not exist.
type NoBreakpointError struct {
	ID int
}

func (nbp NoBreakpointError) Error() string {
	return fmt.Sprintf("no breakpoint with id %d", nbp.ID)
}
