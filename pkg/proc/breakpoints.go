package proc

import (
	"errors"
	"fmt"
	"path/filepath"
)

// TrapByte is the x86 INT 3 instruction.
const TrapByte byte = 0xCC

// Breakpoint represents a software breakpoint. Stores information on the
// breakpoint including the byte of data that originally was stored at
// that address.
type Breakpoint struct {
	// ID is the 1-based position of the breakpoint in the table.
	ID   int
	Addr uint64

	// Enabled breakpoints are installed when a process starts.
	Enabled bool

	// File & line information for printing.
	FunctionName string
	File         string
	Line         int

	// OriginalByte is only meaningful while the breakpoint is installed.
	OriginalByte byte
	installed    bool
}

// Installed returns true if the trap byte is currently written in the
// memory of the process.
func (bp *Breakpoint) Installed() bool {
	return bp.installed
}

func (bp *Breakpoint) String() string {
	s := fmt.Sprintf("Breakpoint %d at %#x", bp.ID, bp.Addr)
	if bp.FunctionName != "" {
		s += " " + bp.FunctionName
	}
	if bp.File != "" {
		s += fmt.Sprintf(" %s:%d", filepath.Base(bp.File), bp.Line)
	}
	return s
}

// BreakpointTable is the set of breakpoints requested by the user, keyed
// by address. It outlives the processes it is installed in.
type BreakpointTable struct {
	m     map[uint64]*Breakpoint
	order []*Breakpoint

	// atPC is a breakpoint installed at the PC of the stopped process
	// whose trap has not executed yet, see InstallAtStop.
	atPC *Breakpoint
}

// NewBreakpointTable returns an empty table.
func NewBreakpointTable() *BreakpointTable {
	return &BreakpointTable{m: make(map[uint64]*Breakpoint)}
}

// Add records a breakpoint at addr. If one already exists the existing
// breakpoint is returned and added is false.
func (t *BreakpointTable) Add(addr uint64) (bp *Breakpoint, added bool) {
	if bp, ok := t.m[addr]; ok {
		return bp, false
	}
	bp = &Breakpoint{Addr: addr, Enabled: true}
	t.order = append(t.order, bp)
	t.m[addr] = bp
	bp.ID = len(t.order)
	return bp, true
}

// Remove deletes the breakpoint at addr. The caller is responsible for
// restoring the original byte first if it is installed.
func (t *BreakpointTable) Remove(addr uint64) bool {
	bp, ok := t.m[addr]
	if !ok {
		return false
	}
	delete(t.m, addr)
	if t.atPC == bp {
		t.atPC = nil
	}
	for i := range t.order {
		if t.order[i] == bp {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	for i := range t.order {
		t.order[i].ID = i + 1
	}
	return true
}

// Get returns the breakpoint at addr.
func (t *BreakpointTable) Get(addr uint64) (*Breakpoint, bool) {
	bp, ok := t.m[addr]
	return bp, ok
}

// GetByID returns the breakpoint with the given ordinal.
func (t *BreakpointTable) GetByID(id int) (*Breakpoint, bool) {
	if id < 1 || id > len(t.order) {
		return nil, false
	}
	return t.order[id-1], true
}

// Lookup returns the original byte at addr if a breakpoint is installed
// there.
func (t *BreakpointTable) Lookup(addr uint64) (byte, bool) {
	bp, ok := t.m[addr]
	if !ok || !bp.installed {
		return 0, false
	}
	return bp.OriginalByte, true
}

// List returns the breakpoints in the order they were added.
func (t *BreakpointTable) List() []*Breakpoint {
	r := make([]*Breakpoint, len(t.order))
	copy(r, t.order)
	return r
}

// Len returns the number of breakpoints.
func (t *BreakpointTable) Len() int {
	return len(t.order)
}

// Install writes the trap byte for bp and saves the byte it replaces.
func (t *BreakpointTable) Install(mem WordReadWriter, bp *Breakpoint) error {
	if bp.installed {
		return nil
	}
	orig, err := WriteByte(mem, bp.Addr, TrapByte)
	if err != nil {
		return err
	}
	bp.OriginalByte = orig
	bp.installed = true
	return nil
}

// Uninstall writes back the original byte of bp.
func (t *BreakpointTable) Uninstall(mem WordReadWriter, bp *Breakpoint) error {
	if !bp.installed {
		return nil
	}
	if _, err := WriteByte(mem, bp.Addr, bp.OriginalByte); err != nil {
		return err
	}
	bp.installed = false
	if t.atPC == bp {
		t.atPC = nil
	}
	return nil
}

// InstallAll installs every enabled breakpoint, typically right after a
// process has been started. Failing breakpoints stay in the table
// uninstalled, all failures are returned joined together.
func (t *BreakpointTable) InstallAll(mem WordReadWriter) error {
	var errs []error
	for _, bp := range t.order {
		if !bp.Enabled {
			continue
		}
		if err := t.Install(mem, bp); err != nil {
			errs = append(errs, fmt.Errorf("could not install breakpoint %d: %w", bp.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Reset marks every breakpoint as not installed, used when the process
// the table was installed in goes away.
func (t *BreakpointTable) Reset() {
	t.atPC = nil
	for _, bp := range t.order {
		bp.installed = false
		bp.OriginalByte = 0
	}
}
