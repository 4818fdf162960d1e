package test

import (
	"encoding/binary"
	"errors"
	"sort"
	"strings"
	"syscall"

	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/pkg/symbols"
)

// FakeRegisters is the register file of a FakeProcess.
type FakeRegisters struct {
	Rip, Rsp, Rbp uint64
}

func (r *FakeRegisters) PC() uint64 { return r.Rip }
func (r *FakeRegisters) SP() uint64 { return r.Rsp }
func (r *FakeRegisters) BP() uint64 { return r.Rbp }

// Loop makes a FakeProcess jump from At back to To, Times times.
type Loop struct {
	At, To uint64
	Times  int
}

// FakeProcess simulates a traced process on top of a sparse memory map.
// Every byte of code is a one byte instruction except TrapByte, which
// stops the process with SIGTRAP. Executing the instruction at ExitAt
// exits the process with ExitCode, executing unmapped memory stops it
// with SIGSEGV.
type FakeProcess struct {
	PID      int
	Regs     FakeRegisters
	Mem      map[uint64]byte
	ExitAt   uint64
	ExitCode int
	Loops    []*Loop

	// BeforeStep and BeforeContinue are called before the process
	// executes, they can be used to check the memory state.
	BeforeStep     func(p *FakeProcess)
	BeforeContinue func(p *FakeProcess)

	Steps, Continues, Kills int

	state proc.State
	sig   proc.Signal
}

// NewFakeProcess returns a process stopped with SIGTRAP at pc, the state
// of a process that just called exec.
func NewFakeProcess(pid int, pc uint64) *FakeProcess {
	return &FakeProcess{
		PID:   pid,
		Regs:  FakeRegisters{Rip: pc},
		Mem:   make(map[uint64]byte),
		state: proc.StateStopped,
		sig:   syscall.SIGTRAP,
	}
}

// Map makes data readable at addr.
func (p *FakeProcess) Map(addr uint64, data []byte) {
	for i, b := range data {
		p.Mem[addr+uint64(i)] = b
	}
}

// MapWord writes a little endian word at addr.
func (p *FakeProcess) MapWord(addr, word uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], word)
	p.Map(addr, buf[:])
}

func (p *FakeProcess) Pid() int {
	return p.PID
}

func (p *FakeProcess) State() proc.State {
	return p.state
}

func (p *FakeProcess) StopSignal() proc.Signal {
	return p.sig
}

func (p *FakeProcess) Registers() (proc.Registers, error) {
	if err := p.checkStopped(); err != nil {
		return nil, err
	}
	regs := p.Regs
	return &regs, nil
}

func (p *FakeProcess) SetPC(pc uint64) error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	p.Regs.Rip = pc
	return nil
}

func (p *FakeProcess) PeekWord(addr uint64) (uint64, error) {
	if err := p.checkStopped(); err != nil {
		return 0, err
	}
	var buf [8]byte
	for i := range buf {
		b, ok := p.Mem[addr+uint64(i)]
		if !ok {
			return 0, &proc.InvalidAddressError{Addr: addr, Err: syscall.EIO}
		}
		buf[i] = b
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (p *FakeProcess) PokeWord(addr, word uint64) error {
	if err := p.checkStopped(); err != nil {
		return err
	}
	for i := uint64(0); i < 8; i++ {
		if _, ok := p.Mem[addr+i]; !ok {
			return &proc.InvalidAddressError{Addr: addr, Err: syscall.EIO}
		}
	}
	p.MapWord(addr, word)
	return nil
}

func (p *FakeProcess) checkStopped() error {
	if !p.state.Alive() {
		return proc.ErrProcessExited{Pid: p.PID, Status: p.ExitCode}
	}
	return nil
}

// exec runs one instruction and reports whether the process stopped.
func (p *FakeProcess) exec() (proc.Status, bool) {
	pc := p.Regs.Rip
	b, ok := p.Mem[pc]
	if !ok {
		p.sig = syscall.SIGSEGV
		return proc.Stopped(syscall.SIGSEGV, pc), true
	}
	p.Regs.Rip++
	if b == proc.TrapByte {
		p.sig = syscall.SIGTRAP
		return proc.Stopped(syscall.SIGTRAP, p.Regs.Rip), true
	}
	if pc == p.ExitAt {
		p.state = proc.StateExited
		p.sig = 0
		return proc.Exited(p.ExitCode), true
	}
	for _, l := range p.Loops {
		if p.Regs.Rip == l.At && l.Times > 0 {
			l.Times--
			p.Regs.Rip = l.To
		}
	}
	return proc.Status{}, false
}

func (p *FakeProcess) SingleStep() (proc.Status, error) {
	if err := p.checkStopped(); err != nil {
		return proc.Status{}, err
	}
	p.Steps++
	if p.BeforeStep != nil {
		p.BeforeStep(p)
	}
	if st, stopped := p.exec(); stopped {
		return st, nil
	}
	p.sig = syscall.SIGTRAP
	return proc.Stopped(syscall.SIGTRAP, p.Regs.Rip), nil
}

func (p *FakeProcess) Continue() (proc.Status, error) {
	if err := p.checkStopped(); err != nil {
		return proc.Status{}, err
	}
	p.Continues++
	if p.BeforeContinue != nil {
		p.BeforeContinue(p)
	}
	for i := 0; i < 1<<20; i++ {
		if st, stopped := p.exec(); stopped {
			return st, nil
		}
	}
	return proc.Status{}, &proc.InternalError{Pid: p.PID, Msg: "fake process ran away"}
}

func (p *FakeProcess) Resume(bps *proc.BreakpointTable) (proc.Status, error) {
	return proc.Resume(p, bps)
}

func (p *FakeProcess) Kill() error {
	p.Kills++
	if p.state.Alive() {
		p.state = proc.StateTerminated
	}
	return nil
}

// FakeSymbols is an in memory symbol table.
type FakeSymbols struct {
	Functions []symbols.Function
	Lines     []symbols.Line
}

func (s *FakeSymbols) FunctionForPC(pc uint64) (*symbols.Function, bool) {
	for i := range s.Functions {
		if fn := &s.Functions[i]; fn.Entry <= pc && pc < fn.End {
			return fn, true
		}
	}
	return nil, false
}

// LineForPC returns the line with the highest address not above pc that
// lies in the same function as pc.
func (s *FakeSymbols) LineForPC(pc uint64) (*symbols.Line, bool) {
	fn, ok := s.FunctionForPC(pc)
	if !ok {
		return nil, false
	}
	lines := make([]symbols.Line, len(s.Lines))
	copy(lines, s.Lines)
	sort.Slice(lines, func(i, j int) bool { return lines[i].PC < lines[j].PC })
	var found *symbols.Line
	for i := range lines {
		if lines[i].PC >= fn.Entry && lines[i].PC <= pc {
			found = &lines[i]
		}
	}
	return found, found != nil
}

func (s *FakeSymbols) LineToPC(fn string, line int) (uint64, bool) {
	var best uint64
	found := false
	for _, l := range s.Lines {
		if l.Line != line {
			continue
		}
		if fn != "" {
			f, ok := s.FunctionForPC(l.PC)
			if !ok || f.Name != fn {
				continue
			}
		}
		if !found || l.PC < best {
			best, found = l.PC, true
		}
	}
	return best, found
}

func (s *FakeSymbols) FunctionToPC(fn, name string) (uint64, bool) {
	if fn != "" {
		name = fn + "." + name
	}
	for _, f := range s.Functions {
		if f.Name == name || strings.HasSuffix(f.Name, "."+name) {
			return f.Entry, true
		}
	}
	return 0, false
}

// ErrFakeLaunch is the error fake launchers return for executables that
// do not exist.
var ErrFakeLaunch = errors.New("no such file or directory")
