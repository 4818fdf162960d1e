package native

import (
	"errors"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
)

// ErrNativeBackendDisabled is returned by Launch on platforms without a
// native backend.
var ErrNativeBackendDisabled = errors.New("native backend disabled during compilation")

// Process represents all of the information the debugger
// is holding onto regarding the process we are debugging.
type Process struct {
	pid   int // Process Pid
	state proc.State

	// stopSignal is the signal that caused the last stop.
	stopSignal proc.Signal
	// pendingSignal is a signal that arrived while single stepping, it is
	// delivered on the next continue.
	pendingSignal proc.Signal
	exitCode      int

	ptraceChan     chan func()
	ptraceDoneChan chan interface{}
	exited         bool

	ctty *os.File // controlling terminal, if the process was started on one
	log  *logrus.Entry
}

var _ proc.Inferior = (*Process)(nil)

// newProcess returns an initialized Process struct. Before returning,
// it will also launch a goroutine in order to handle ptrace(2)
// functions. For more information, see the documentation on
// `handlePtraceFuncs`.
func newProcess() *Process {
	dbp := &Process{
		state:          proc.StateNotStarted,
		ptraceChan:     make(chan func()),
		ptraceDoneChan: make(chan interface{}),
		log:            logflags.ProcLogger(),
	}
	go dbp.handlePtraceFuncs()
	return dbp
}

// Pid returns the process ID.
func (dbp *Process) Pid() int {
	return dbp.pid
}

// State returns the lifecycle state of the process.
func (dbp *Process) State() proc.State {
	return dbp.state
}

// StopSignal returns the signal that caused the current stop, 0 if the
// process is not stopped.
func (dbp *Process) StopSignal() proc.Signal {
	if dbp.state != proc.StateStopped {
		return 0
	}
	return dbp.stopSignal
}

// Resume continues the process, stepping over the breakpoint it is
// stopped at if there is one.
func (dbp *Process) Resume(bps *proc.BreakpointTable) (proc.Status, error) {
	return proc.Resume(dbp, bps)
}

func (dbp *Process) checkStopped() error {
	if !dbp.state.Alive() {
		return proc.ErrProcessExited{Pid: dbp.pid, Status: dbp.exitCode}
	}
	return nil
}

func (dbp *Process) handlePtraceFuncs() {
	// We must ensure here that we are running on the same thread during
	// while invoking the ptrace(2) syscall. This is due to the fact that ptrace(2) expects
	// all commands after PTRACE_ATTACH to come from the same thread.
	runtime.LockOSThread()

	for fn := range dbp.ptraceChan {
		fn()
		dbp.ptraceDoneChan <- nil
	}
}

func (dbp *Process) execPtraceFunc(fn func()) {
	dbp.ptraceChan <- fn
	<-dbp.ptraceDoneChan
}

// postExit releases the resources of a process that no longer exists.
func (dbp *Process) postExit() {
	if dbp.exited {
		return
	}
	dbp.exited = true
	close(dbp.ptraceChan)
	close(dbp.ptraceDoneChan)
	if dbp.ctty != nil {
		dbp.ctty.Close()
		dbp.ctty = nil
	}
}
