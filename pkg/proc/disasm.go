package proc

import (
	"golang.org/x/arch/x86/x86asm"
)

// maxInstructionLength is the maximum length of an x86 instruction.
const maxInstructionLength = 15

// AsmInstruction represents one assembly instruction.
type AsmInstruction struct {
	Loc        Location
	Bytes      []byte
	Text       string
	Breakpoint bool
	AtPC       bool
}

// Disassemble decodes count instructions starting at pc. Installed trap
// bytes are shown as the instructions they replaced. Decoding stops early,
// without error, when it runs into unreadable memory after at least one
// instruction has been decoded.
func Disassemble(mem WordReadWriter, bps *BreakpointTable, syms SymbolLookup, pc uint64, count int) ([]AsmInstruction, error) {
	symname := func(addr uint64) (string, uint64) {
		if fn, ok := syms.FunctionForPC(addr); ok {
			return fn.Name, fn.Entry
		}
		return "", 0
	}
	r := make([]AsmInstruction, 0, count)
	addr := pc
	for len(r) < count {
		buf, err := readInstructionBytes(mem, bps, addr)
		if err != nil {
			if len(r) > 0 {
				break
			}
			return nil, err
		}
		inst := AsmInstruction{Loc: Location{PC: addr}, AtPC: addr == pc}
		if fn, ok := syms.FunctionForPC(addr); ok {
			inst.Loc.Fn = fn
		}
		if l, ok := syms.LineForPC(addr); ok {
			inst.Loc.File, inst.Loc.Line = l.File, l.Line
		}
		_, inst.Breakpoint = bps.Lookup(addr)
		if !inst.Breakpoint {
			if bp, ok := bps.Get(addr); ok && bp.Enabled {
				inst.Breakpoint = true
			}
		}
		decoded, err := x86asm.Decode(buf, 64)
		if err != nil {
			inst.Bytes = buf[:1]
			inst.Text = "?"
		} else {
			inst.Bytes = buf[:decoded.Len]
			inst.Text = x86asm.IntelSyntax(decoded, addr, symname)
		}
		r = append(r, inst)
		addr += uint64(len(inst.Bytes))
	}
	return r, nil
}

// readInstructionBytes reads up to maxInstructionLength bytes, fewer if
// the tail of the range is not readable.
func readInstructionBytes(mem WordReadWriter, bps *BreakpointTable, addr uint64) ([]byte, error) {
	var lastErr error
	for size := maxInstructionLength; size > 0; size /= 2 {
		buf, err := ReadMemory(mem, bps, addr, size)
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
