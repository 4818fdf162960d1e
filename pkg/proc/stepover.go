package proc

import (
	"syscall"

	"github.com/go-delve/deet/pkg/logflags"
)

// CurrentBreakpoint returns the breakpoint the process is stopped at. After
// a trap byte executes the PC points one byte past the breakpoint address.
// A breakpoint installed at the PC by InstallAtStop is also returned.
func CurrentBreakpoint(t Tracee, bps *BreakpointTable) (*Breakpoint, error) {
	trapped := t.StopSignal() == syscall.SIGTRAP
	if !trapped && bps.atPC == nil {
		return nil, nil
	}
	regs, err := t.Registers()
	if err != nil {
		return nil, err
	}
	pc := regs.PC()
	if trapped && pc != 0 {
		if bp, ok := bps.Get(pc - 1); ok && bp.installed {
			return bp, nil
		}
	}
	if bp := bps.atPC; bp != nil && bp.installed && bp.Addr == pc {
		return bp, nil
	}
	return nil, nil
}

// InstallAtStop installs bp in the stopped process t. When bp is at the
// PC the instruction under it has not run yet, the next Resume steps over
// it rather than stopping on it again without making progress.
func InstallAtStop(t Tracee, bps *BreakpointTable, bp *Breakpoint) error {
	if err := bps.Install(t, bp); err != nil {
		return err
	}
	regs, err := t.Registers()
	if err != nil {
		return err
	}
	if regs.PC() == bp.Addr {
		bps.atPC = bp
	}
	return nil
}

// StepOverBreakpoint executes the instruction under the breakpoint the
// process is stopped at, if any, without disarming the breakpoint:
//
//  1. the original byte is written back and the PC rewound onto it
//  2. the process is single stepped
//  3. the trap byte is written again, unless the step ended the process
//
// The returned bool reports whether a step was taken, in which case Status
// is the result of the step.
func StepOverBreakpoint(t Tracee, bps *BreakpointTable) (Status, bool, error) {
	bp, err := CurrentBreakpoint(t, bps)
	bps.atPC = nil
	if err != nil || bp == nil {
		return Status{}, false, err
	}
	if logflags.Proc() {
		logflags.ProcLogger().Debugf("stepping over breakpoint %d at %#x", bp.ID, bp.Addr)
	}

	if err := restoreOriginal(t, bps, bp); err != nil {
		return Status{}, false, err
	}
	st, err := t.SingleStep()
	if err != nil {
		return Status{}, true, err
	}
	if st.Gone() {
		return st, true, nil
	}
	if err := bps.Install(t, bp); err != nil {
		return st, true, err
	}
	return st, true, nil
}

func restoreOriginal(t Tracee, bps *BreakpointTable, bp *Breakpoint) error {
	if err := bps.Uninstall(t, bp); err != nil {
		return err
	}
	return t.SetPC(bp.Addr)
}

// Resume continues a stopped process and waits for the next stop. A
// process stopped at a breakpoint first steps over it, a step that ends
// in anything other than a plain single step trap is returned without
// continuing.
func Resume(t Tracee, bps *BreakpointTable) (Status, error) {
	st, stepped, err := StepOverBreakpoint(t, bps)
	if err != nil {
		return Status{}, err
	}
	if stepped && (st.Kind != StatusStopped || st.Signal != syscall.SIGTRAP) {
		return st, nil
	}
	return t.Continue()
}
