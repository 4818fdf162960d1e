package proc

import (
	"github.com/go-delve/deet/pkg/symbols"
)

// DefaultMaxStackDepth is the default bound on the number of frames
// returned by FramePointerUnwinder.
const DefaultMaxStackDepth = 1024

// Location represents the location of a thread.
// Holds information on the current instruction
// address, the source file:line, and the function.
type Location struct {
	PC   uint64
	File string
	Line int
	Fn   *symbols.Function
}

// Stackframe represents a frame in a system stack.
type Stackframe struct {
	// Current is the location of the frame: the stop address for the
	// innermost frame, the return address for the others.
	Current Location
	// BP is the frame base of this frame.
	BP uint64
}

// Unwinder walks the call stack of a stopped process, innermost frame
// first.
type Unwinder interface {
	Stacktrace(t Tracee, bps *BreakpointTable, syms SymbolLookup) ([]Stackframe, error)
}

// FramePointerUnwinder follows the chain of saved frame base pointers.
// Each frame stores the caller's frame base at BP and the return address
// at BP+8.
type FramePointerUnwinder struct {
	// EntryFunctions stop the walk once reached.
	EntryFunctions []string
	// MaxDepth bounds the walk, DefaultMaxStackDepth if zero.
	MaxDepth int
}

func (u *FramePointerUnwinder) isEntry(fn *symbols.Function) bool {
	for _, name := range u.EntryFunctions {
		if fn.Name == name {
			return true
		}
	}
	return false
}

// Stacktrace returns the frames from the current instruction up to the
// first entry function or the first address that does not resolve to a
// function. The walk also stops on a zero frame base, on a frame base
// that does not grow towards the bottom of the stack and after MaxDepth
// frames, so a corrupt chain can not make it loop. Frames collected before
// a memory read error are returned together with the error.
func (u *FramePointerUnwinder) Stacktrace(t Tracee, bps *BreakpointTable, syms SymbolLookup) ([]Stackframe, error) {
	maxDepth := u.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxStackDepth
	}
	regs, err := t.Registers()
	if err != nil {
		return nil, err
	}
	pc, sp, bp := regs.PC(), regs.SP(), regs.BP()
	if cur, err := CurrentBreakpoint(t, bps); err == nil && cur != nil {
		pc = cur.Addr
	}

	frames := make([]Stackframe, 0, 16)
	for depth := 0; depth < maxDepth; depth++ {
		// Return addresses point after the call instruction, which may be
		// the last instruction of the function.
		lookup := pc
		if depth > 0 {
			lookup--
		}
		frame := Stackframe{Current: Location{PC: pc}, BP: bp}
		fn, ok := syms.FunctionForPC(lookup)
		if ok {
			frame.Current.Fn = fn
		}
		if l, ok := syms.LineForPC(lookup); ok {
			frame.Current.File, frame.Current.Line = l.File, l.Line
		}
		frames = append(frames, frame)

		if fn == nil || u.isEntry(fn) || bp == 0 {
			return frames, nil
		}

		var ret uint64
		if depth == 0 && pc == fn.Entry {
			// The frame of the innermost function has not been set up
			// yet: the return address is on top of the stack and BP still
			// belongs to the caller.
			ret, err = t.PeekWord(sp)
			if err != nil {
				return frames, err
			}
		} else {
			ret, err = t.PeekWord(bp + 8)
			if err != nil {
				return frames, err
			}
			next, err := t.PeekWord(bp)
			if err != nil {
				return frames, err
			}
			if next != 0 && next <= bp {
				return frames, nil
			}
			bp = next
		}
		pc = ret
	}
	return frames, nil
}
