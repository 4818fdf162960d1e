//go:build linux && amd64

package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	sys "golang.org/x/sys/unix"

	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
)

// Launch creates and begins debugging a new process. First entry in
// `cmd` is the program to run, and then rest are the arguments
// to be supplied to that process. The process is stopped before its
// first instruction.
func Launch(cmd []string, opts LaunchOptions) (*Process, error) {
	if len(cmd) == 0 {
		return nil, &proc.SpawnError{Err: errors.New("no executable specified")}
	}
	stdin, stdout, stderr, closefn, err := openRedirects(opts.Redirects)
	if err != nil {
		return nil, &proc.SpawnError{Path: cmd[0], Err: err}
	}

	var process *exec.Cmd
	dbp := newProcess()
	dbp.execPtraceFunc(func() {
		process = exec.Command(cmd[0])
		process.Args = cmd
		process.Stdin = stdin
		process.Stdout = stdout
		process.Stderr = stderr
		// The process stays in the debugger's process group so that ^C on
		// the terminal stops it.
		process.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
		if len(opts.Env) > 0 {
			process.Env = append(os.Environ(), opts.Env...)
		}
		if opts.TTY != "" {
			dbp.ctty, err = attachProcessToTTY(process, opts.TTY)
			if err != nil {
				return
			}
		}
		if opts.WorkingDir != "" {
			process.Dir = opts.WorkingDir
		}
		err = process.Start()
	})
	closefn()
	if err != nil {
		dbp.postExit()
		return nil, &proc.SpawnError{Path: cmd[0], Err: err}
	}
	dbp.pid = process.Process.Pid
	dbp.state = proc.StateRunning
	dbp.log.Debugf("launched %q as process %d", cmd, dbp.pid)

	st, err := dbp.Wait()
	if err != nil {
		dbp.Kill()
		return nil, err
	}
	if st.Kind != proc.StatusStopped || st.Signal != syscall.SIGTRAP {
		dbp.Kill()
		return nil, &proc.SpawnError{Path: cmd[0], Err: fmt.Errorf("waiting for target execve failed: %s", st)}
	}
	dbp.execPtraceFunc(func() { err = ptraceSetOptions(dbp.pid, sys.PTRACE_O_EXITKILL) })
	if err != nil {
		dbp.Kill()
		return nil, &proc.TraceError{Op: "set options", Pid: dbp.pid, Err: err}
	}
	return dbp, nil
}

// PeekWord reads the machine word at addr.
func (dbp *Process) PeekWord(addr uint64) (uint64, error) {
	if err := dbp.checkStopped(); err != nil {
		return 0, err
	}
	var (
		buf [8]byte
		err error
	)
	dbp.execPtraceFunc(func() { err = ptracePeekWord(dbp.pid, uintptr(addr), buf[:]) })
	if logflags.Proc() {
		dbp.log.Debugf("peek %d %#x = %#x (%v)", dbp.pid, addr, binary.LittleEndian.Uint64(buf[:]), err)
	}
	if err != nil {
		return 0, dbp.memoryError("peek", addr, err)
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

// PokeWord writes the machine word at addr. Text pages are writable
// through ptrace even when they are mapped read only.
func (dbp *Process) PokeWord(addr, word uint64) error {
	if err := dbp.checkStopped(); err != nil {
		return err
	}
	var (
		buf [8]byte
		err error
	)
	binary.LittleEndian.PutUint64(buf[:], word)
	dbp.execPtraceFunc(func() { err = ptracePokeWord(dbp.pid, uintptr(addr), buf[:]) })
	if logflags.Proc() {
		dbp.log.Debugf("poke %d %#x = %#x (%v)", dbp.pid, addr, word, err)
	}
	if err != nil {
		return dbp.memoryError("poke", addr, err)
	}
	return nil
}

func (dbp *Process) memoryError(op string, addr uint64, err error) error {
	if err == sys.EIO || err == sys.EFAULT {
		return &proc.InvalidAddressError{Addr: addr, Err: err}
	}
	return &proc.TraceError{Op: op, Pid: dbp.pid, Err: err}
}

// SingleStep executes exactly one instruction. Signals that do not stop
// the debugger and arrive before the instruction executes are held back
// and delivered by the next Continue, so that the step does not end up
// in a signal handler.
func (dbp *Process) SingleStep() (proc.Status, error) {
	if err := dbp.checkStopped(); err != nil {
		return proc.Status{}, err
	}
	for {
		var err error
		dbp.execPtraceFunc(func() { err = ptraceSingleStep(dbp.pid, 0) })
		if err != nil {
			return proc.Status{}, &proc.TraceError{Op: "single step", Pid: dbp.pid, Err: err}
		}
		dbp.state = proc.StateRunning
		st, err := dbp.Wait()
		if err != nil || st.Kind != proc.StatusStopped || !passSignal(st.Signal) {
			return st, err
		}
		if logflags.Proc() {
			dbp.log.Debugf("holding %s received while stepping", proc.SignalName(st.Signal))
		}
		dbp.pendingSignal = st.Signal
	}
}

// Continue resumes the process and waits for it to stop again. The signal
// of the current stop is delivered to the process, unless the debugger
// raised it. Signals the target uses internally are passed on without
// reporting the stop.
func (dbp *Process) Continue() (proc.Status, error) {
	if err := dbp.checkStopped(); err != nil {
		return proc.Status{}, err
	}
	sig := dbp.stopSignal
	if !forwardSignal(sig) {
		sig = dbp.pendingSignal
		dbp.pendingSignal = 0
	}
	for {
		if sig != 0 && logflags.Proc() {
			dbp.log.Debugf("delivering %s to %d", proc.SignalName(sig), dbp.pid)
		}
		var err error
		dbp.execPtraceFunc(func() { err = ptraceCont(dbp.pid, int(sig)) })
		if err != nil {
			return proc.Status{}, &proc.TraceError{Op: "continue", Pid: dbp.pid, Err: err}
		}
		dbp.state = proc.StateRunning
		st, err := dbp.Wait()
		if err != nil || st.Kind != proc.StatusStopped || !passSignal(st.Signal) {
			return st, err
		}
		sig = st.Signal
	}
}

// Wait blocks until the process changes state.
func (dbp *Process) Wait() (proc.Status, error) {
	if dbp.exited {
		return proc.Status{}, proc.ErrProcessExited{Pid: dbp.pid, Status: dbp.exitCode}
	}
	_, status, err := wait4(dbp.pid)
	if logflags.Proc() {
		dbp.log.Debugf("wait4 %d: status %#x (%v)", dbp.pid, uint32(status), err)
	}
	if err != nil {
		return proc.Status{}, &proc.TraceError{Op: "wait", Pid: dbp.pid, Err: err}
	}
	switch {
	case status.Exited():
		dbp.state = proc.StateExited
		dbp.exitCode = status.ExitStatus()
		dbp.postExit()
		return proc.Exited(dbp.exitCode), nil
	case status.Signaled():
		dbp.state = proc.StateTerminated
		dbp.postExit()
		return proc.Signaled(status.Signal()), nil
	case status.Stopped():
		dbp.state = proc.StateStopped
		dbp.stopSignal = status.StopSignal()
		regs, err := dbp.registers()
		if err != nil {
			return proc.Status{}, err
		}
		return proc.Stopped(dbp.stopSignal, regs.PC()), nil
	}
	return proc.Status{}, &proc.InternalError{Pid: dbp.pid, Msg: fmt.Sprintf("unexpected wait status %#x", uint32(status))}
}

// Kill kills the process and reaps it. Killing a process that already
// exited does nothing.
func (dbp *Process) Kill() error {
	if !dbp.state.Alive() {
		return nil
	}
	if err := sys.Kill(dbp.pid, sys.SIGKILL); err != nil && err != sys.ESRCH {
		return &proc.TraceError{Op: "kill", Pid: dbp.pid, Err: err}
	}
	for {
		_, status, err := wait4(dbp.pid)
		if err == sys.ECHILD {
			break
		}
		if err != nil {
			return &proc.TraceError{Op: "wait", Pid: dbp.pid, Err: err}
		}
		if status.Exited() || status.Signaled() {
			break
		}
	}
	dbp.log.Debugf("killed process %d", dbp.pid)
	dbp.state = proc.StateTerminated
	dbp.postExit()
	return nil
}

// forwardSignal reports whether the signal that stopped the process should
// be delivered to it on resume. SIGTRAP and SIGSTOP are raised by the
// tracing itself, SIGINT is how the user interrupts the target from the
// terminal.
func forwardSignal(sig proc.Signal) bool {
	switch sig {
	case 0, sys.SIGTRAP, sys.SIGSTOP, sys.SIGINT:
		return false
	}
	return true
}

// passSignal reports whether sig is delivered to the target without
// stopping the debugger. The Go runtime uses SIGURG for preemption.
func passSignal(sig proc.Signal) bool {
	switch sig {
	case sys.SIGURG, sys.SIGCHLD, sys.SIGWINCH, sys.SIGPROF, sys.SIGALRM, sys.SIGVTALRM, sys.SIGIO:
		return true
	}
	return false
}
