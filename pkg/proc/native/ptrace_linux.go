//go:build linux && amd64

package native

import (
	"syscall"

	sys "golang.org/x/sys/unix"
)

// ptraceCont executes ptrace PTRACE_CONT
func ptraceCont(tid, sig int) error {
	return sys.PtraceCont(tid, sig)
}

// ptraceSingleStep executes ptrace PTRACE_SINGLESTEP
func ptraceSingleStep(pid, sig int) error {
	_, _, e1 := sys.Syscall6(sys.SYS_PTRACE, uintptr(sys.PTRACE_SINGLESTEP), uintptr(pid), uintptr(0), uintptr(sig), 0, 0)
	if e1 != 0 {
		return e1
	}
	return nil
}

// ptraceSetOptions executes ptrace PTRACE_SETOPTIONS
func ptraceSetOptions(pid, options int) error {
	return sys.PtraceSetOptions(pid, options)
}

// ptracePeekWord reads the machine word at addr.
func ptracePeekWord(pid int, addr uintptr, buf []byte) error {
	_, err := sys.PtracePeekData(pid, addr, buf)
	return err
}

// ptracePokeWord writes the machine word at addr.
func ptracePokeWord(pid int, addr uintptr, buf []byte) error {
	_, err := sys.PtracePokeData(pid, addr, buf)
	return err
}

// wait4 waits for the tracee, retrying if interrupted.
func wait4(pid int) (int, sys.WaitStatus, error) {
	var s sys.WaitStatus
	for {
		wpid, err := sys.Wait4(pid, &s, sys.WALL, nil)
		if err == syscall.EINTR {
			continue
		}
		return wpid, s, err
	}
}
