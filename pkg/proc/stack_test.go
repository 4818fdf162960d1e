package proc_test

import (
	"testing"

	"github.com/go-delve/deet/pkg/proc"
	protest "github.com/go-delve/deet/pkg/proc/test"
	"github.com/go-delve/deet/pkg/symbols"
)

const (
	mainEntry = textBase
	fooEntry  = textBase + 0x20
	barEntry  = textBase + 0x40
	stackTop  = 0xc000
)

// Three functions, main calls foo at +0xa, foo calls bar at +0xc.
func fakeProgram() (*protest.FakeProcess, *protest.FakeSymbols) {
	p := protest.NewFakeProcess(100, mainEntry)
	p.Map(textBase, nops(0x60))
	p.Map(stackTop, make([]byte, 0x100))
	syms := &protest.FakeSymbols{
		Functions: []symbols.Function{
			{Name: "main.main", Entry: mainEntry, End: fooEntry},
			{Name: "main.foo", Entry: fooEntry, End: barEntry},
			{Name: "main.bar", Entry: barEntry, End: barEntry + 0x20},
		},
		Lines: []symbols.Line{
			{File: "/src/prog.go", Line: 5, PC: mainEntry},
			{File: "/src/prog.go", Line: 6, PC: mainEntry + 0x8},
			{File: "/src/prog.go", Line: 7, PC: mainEntry + 0x10},
			{File: "/src/prog.go", Line: 10, PC: fooEntry},
			{File: "/src/prog.go", Line: 11, PC: fooEntry + 0xa},
			{File: "/src/prog.go", Line: 12, PC: fooEntry + 0x10},
			{File: "/src/prog.go", Line: 20, PC: barEntry},
			{File: "/src/prog.go", Line: 21, PC: barEntry + 0x6},
		},
	}
	return p, syms
}

// stopInBar leaves the process stopped after the trap at barEntry+8 with
// the frame chain bar -> foo -> main set up on the stack.
func stopInBar(t *testing.T, p *protest.FakeProcess, bps *proc.BreakpointTable) {
	t.Helper()
	bps.Add(barEntry + 8)
	assertNoError(bps.InstallAll(p), t, "InstallAll")
	p.Regs = protest.FakeRegisters{Rip: barEntry + 9, Rsp: stackTop, Rbp: stackTop + 0x10}
	p.MapWord(stackTop+0x10, stackTop+0x30)
	p.MapWord(stackTop+0x18, fooEntry+0xc)
	p.MapWord(stackTop+0x30, stackTop+0x50)
	p.MapWord(stackTop+0x38, mainEntry+0xa)
	p.MapWord(stackTop+0x50, 0)
	p.MapWord(stackTop+0x58, 0x7fff0000)
}

type frameDesc struct {
	pc   uint64
	fn   string
	line int
}

func checkFrames(t *testing.T, frames []proc.Stackframe, want []frameDesc) {
	t.Helper()
	if len(frames) != len(want) {
		for i, fr := range frames {
			t.Logf("%d %#x %v %d", i, fr.Current.PC, fr.Current.Fn, fr.Current.Line)
		}
		t.Fatalf("expected %d frames, got %d", len(want), len(frames))
	}
	for i := range want {
		cur := frames[i].Current
		if cur.PC != want[i].pc {
			t.Errorf("frame %d: pc %#x, expected %#x", i, cur.PC, want[i].pc)
		}
		name := ""
		if cur.Fn != nil {
			name = cur.Fn.Name
		}
		if name != want[i].fn {
			t.Errorf("frame %d: function %q, expected %q", i, name, want[i].fn)
		}
		if cur.Line != want[i].line {
			t.Errorf("frame %d: line %d, expected %d", i, cur.Line, want[i].line)
		}
	}
}

func TestStacktraceStopsAtEntryFunction(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	stopInBar(t, p, bps)

	u := &proc.FramePointerUnwinder{EntryFunctions: []string{"main.main"}}
	frames, err := u.Stacktrace(p, bps, syms)
	assertNoError(err, t, "Stacktrace")
	checkFrames(t, frames, []frameDesc{
		{barEntry + 8, "main.bar", 21},
		{fooEntry + 0xc, "main.foo", 11},
		{mainEntry + 0xa, "main.main", 6},
	})
	if frames[0].BP != stackTop+0x10 || frames[1].BP != stackTop+0x30 {
		t.Errorf("unexpected frame bases %#x %#x", frames[0].BP, frames[1].BP)
	}
}

func TestStacktraceStopsAtUnknownFunction(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	stopInBar(t, p, bps)
	// keep walking past main into a caller without symbols
	p.MapWord(stackTop+0x50, stackTop+0x70)

	u := &proc.FramePointerUnwinder{}
	frames, err := u.Stacktrace(p, bps, syms)
	assertNoError(err, t, "Stacktrace")
	checkFrames(t, frames, []frameDesc{
		{barEntry + 8, "main.bar", 21},
		{fooEntry + 0xc, "main.foo", 11},
		{mainEntry + 0xa, "main.main", 6},
		{0x7fff0000, "", 0},
	})
}

func TestStacktraceZeroFrameBase(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	stopInBar(t, p, bps)

	u := &proc.FramePointerUnwinder{}
	frames, err := u.Stacktrace(p, bps, syms)
	assertNoError(err, t, "Stacktrace")
	// main's saved frame base is zero: the chain ends with its caller
	if len(frames) != 4 {
		t.Fatalf("expected 4 frames, got %d", len(frames))
	}
	if frames[3].BP != 0 {
		t.Fatalf("expected last frame base to be zero, got %#x", frames[3].BP)
	}
}

func TestStacktraceCorruptChain(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	stopInBar(t, p, bps)
	// foo's frame points back at bar's
	p.MapWord(stackTop+0x30, stackTop+0x10)

	u := &proc.FramePointerUnwinder{}
	frames, err := u.Stacktrace(p, bps, syms)
	assertNoError(err, t, "Stacktrace")
	checkFrames(t, frames, []frameDesc{
		{barEntry + 8, "main.bar", 21},
		{fooEntry + 0xc, "main.foo", 11},
	})
}

func TestStacktraceMaxDepth(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	stopInBar(t, p, bps)

	u := &proc.FramePointerUnwinder{MaxDepth: 2}
	frames, err := u.Stacktrace(p, bps, syms)
	assertNoError(err, t, "Stacktrace")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
}

func TestStacktraceAtFunctionEntry(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	bps.Add(fooEntry)
	assertNoError(bps.InstallAll(p), t, "InstallAll")
	// the call just happened: the return address is on top of the stack
	// and the frame base is still main's
	p.Regs = protest.FakeRegisters{Rip: fooEntry + 1, Rsp: stackTop + 0x28, Rbp: stackTop + 0x30}
	p.MapWord(stackTop+0x28, mainEntry+0xa)
	p.MapWord(stackTop+0x30, stackTop+0x50)
	p.MapWord(stackTop+0x38, 0x7fff0000)

	u := &proc.FramePointerUnwinder{EntryFunctions: []string{"main.main"}}
	frames, err := u.Stacktrace(p, bps, syms)
	assertNoError(err, t, "Stacktrace")
	checkFrames(t, frames, []frameDesc{
		{fooEntry, "main.foo", 10},
		{mainEntry + 0xa, "main.main", 6},
	})
}

func TestStacktraceAtEntryStop(t *testing.T) {
	p, syms := fakeProgram()
	p.Regs = protest.FakeRegisters{Rip: 0x400000, Rsp: stackTop, Rbp: 0}

	u := &proc.FramePointerUnwinder{EntryFunctions: []string{"main.main"}}
	frames, err := u.Stacktrace(p, proc.NewBreakpointTable(), syms)
	assertNoError(err, t, "Stacktrace")
	checkFrames(t, frames, []frameDesc{{0x400000, "", 0}})
}

func TestStacktraceMemoryError(t *testing.T) {
	p, syms := fakeProgram()
	bps := proc.NewBreakpointTable()
	stopInBar(t, p, bps)
	p.MapWord(stackTop+0x30, 0x20000)

	u := &proc.FramePointerUnwinder{}
	frames, err := u.Stacktrace(p, bps, syms)
	if !proc.IsInvalidAddress(err) {
		t.Fatalf("expected invalid address error, got %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("expected the frames read before the error, got %d", len(frames))
	}
}
