package native

import (
	sys "golang.org/x/sys/unix"

	"github.com/go-delve/deet/pkg/proc"
)

// Regs is the register set of a stopped process.
type Regs struct {
	regs sys.PtraceRegs
}

func (r *Regs) PC() uint64 { return r.regs.Rip }
func (r *Regs) SP() uint64 { return r.regs.Rsp }
func (r *Regs) BP() uint64 { return r.regs.Rbp }

func (dbp *Process) registers() (*Regs, error) {
	if err := dbp.checkStopped(); err != nil {
		return nil, err
	}
	var (
		r   Regs
		err error
	)
	dbp.execPtraceFunc(func() { err = sys.PtraceGetRegs(dbp.pid, &r.regs) })
	if err != nil {
		return nil, &proc.TraceError{Op: "get registers", Pid: dbp.pid, Err: err}
	}
	return &r, nil
}

// Registers returns the registers of the stopped process.
func (dbp *Process) Registers() (proc.Registers, error) {
	r, err := dbp.registers()
	if err != nil {
		return nil, err
	}
	return r, nil
}

// SetPC sets RIP to the value specified by 'pc'.
func (dbp *Process) SetPC(pc uint64) error {
	r, err := dbp.registers()
	if err != nil {
		return err
	}
	r.regs.Rip = pc
	dbp.execPtraceFunc(func() { err = sys.PtraceSetRegs(dbp.pid, &r.regs) })
	if err != nil {
		return &proc.TraceError{Op: "set registers", Pid: dbp.pid, Err: err}
	}
	return nil
}
