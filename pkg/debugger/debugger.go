package debugger

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/pkg/proc/native"
	"github.com/go-delve/deet/pkg/symbols"
)

// Session is the debugging session.
//
// Session owns the breakpoint table and the process being debugged, if
// there is one, and implements the commands of the debugger on top of
// the process control layer in proc. Breakpoints outlive the processes
// they were installed in: every new process gets all of them.
type Session struct {
	config   *Config
	syms     SymbolTable
	bps      *proc.BreakpointTable
	unwinder proc.Unwinder
	// inferior is the current process, nil if there is none.
	inferior proc.Inferior
	log      *logrus.Entry
}

// Config provides the configuration to start a Session.
type Config struct {
	// Target is the path of the executable to debug.
	Target string
	// Args are the arguments passed to the target by run when the command
	// has none.
	Args []string

	// WorkingDir is working directory of the new process.
	WorkingDir string
	// TTY is the path of the terminal the target is started on.
	TTY string
	// Env is added to the environment of the target.
	Env []string

	// EntryFunctions are the functions where backtraces end.
	EntryFunctions []string
	// MaxStackDepth bounds the length of backtraces.
	MaxStackDepth int

	// Launch starts a process, native.Launch if nil.
	Launch Launcher
	// Unwinder walks the stack, a proc.FramePointerUnwinder if nil.
	Unwinder proc.Unwinder
}

// Launcher starts a new process stopped at its first instruction.
type Launcher func(cmd []string, opts native.LaunchOptions) (proc.Inferior, error)

func nativeLaunch(cmd []string, opts native.LaunchOptions) (proc.Inferior, error) {
	p, err := native.Launch(cmd, opts)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SymbolTable resolves source locations to addresses and back.
type SymbolTable interface {
	proc.SymbolLookup
	LineToPC(fn string, line int) (uint64, bool)
	FunctionToPC(fn, name string) (uint64, bool)
}

// DebuggerState describes the result of a command that ran the target.
type DebuggerState struct {
	// Status is the state change of the process.
	Status proc.Status
	// Pid of the process.
	Pid int
	// Breakpoint is the breakpoint the process stopped at, if any.
	Breakpoint *proc.Breakpoint
	// Function and Line are the location of the stop, when it resolves.
	Function *symbols.Function
	Line     *symbols.Line
	// Warnings are errors that did not prevent the command from running,
	// for example breakpoints that could not be installed.
	Warnings []string
}

// Exited returns true if the process no longer exists.
func (s *DebuggerState) Exited() bool {
	return s.Status.Gone()
}

// New creates a new Session for the executable described by config, with
// symbols read from the same executable.
func New(config *Config, syms SymbolTable) *Session {
	if config.Launch == nil {
		config.Launch = nativeLaunch
	}
	unwinder := config.Unwinder
	if unwinder == nil {
		unwinder = &proc.FramePointerUnwinder{
			EntryFunctions: config.EntryFunctions,
			MaxDepth:       config.MaxStackDepth,
		}
	}
	return &Session{
		config:   config,
		syms:     syms,
		bps:      proc.NewBreakpointTable(),
		unwinder: unwinder,
		log:      logflags.DebuggerLogger(),
	}
}

// Target returns the path of the executable being debugged.
func (d *Session) Target() string {
	return d.config.Target
}

// FunctionNames returns the names of the functions of the target, if the
// symbol table can enumerate them.
func (d *Session) FunctionNames() []string {
	lister, ok := d.syms.(interface{ Functions() []symbols.Function })
	if !ok {
		return nil
	}
	fns := lister.Functions()
	r := make([]string, 0, len(fns))
	for i := range fns {
		r = append(r, fns[i].Name)
	}
	return r
}

// ProcessPid returns the PID of the process being debugged, 0 if there
// is none.
func (d *Session) ProcessPid() int {
	if d.inferior == nil {
		return 0
	}
	return d.inferior.Pid()
}

// Running returns true if there is a process being debugged.
func (d *Session) Running() bool {
	return d.inferior != nil
}

// Run kills the current process, if any, starts a new one with all
// breakpoints installed and runs it to the first stop. When args is empty
// the arguments of the previous run are reused.
func (d *Session) Run(args []string, redirects [3]string) (*DebuggerState, error) {
	if err := d.detach(); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		d.config.Args = args
	}
	cmd := append([]string{d.config.Target}, d.config.Args...)
	d.log.Infof("launching process with args: %v", cmd)
	p, err := d.config.Launch(cmd, native.LaunchOptions{
		WorkingDir: d.config.WorkingDir,
		TTY:        d.config.TTY,
		Redirects:  redirects,
		Env:        d.config.Env,
	})
	if err != nil {
		return nil, err
	}
	d.inferior = p

	var warnings []string
	if err := d.bps.InstallAll(p); err != nil {
		if d.discardIfUntraceable(err) {
			return nil, err
		}
		d.log.Warnf("installing breakpoints: %v", err)
		warnings = append(warnings, splitJoined(err)...)
	}
	state, err := d.resume()
	if state != nil {
		state.Warnings = append(warnings, state.Warnings...)
	}
	return state, err
}

// Continue resumes the current process until the next stop.
func (d *Session) Continue() (*DebuggerState, error) {
	if d.inferior == nil {
		return nil, ErrNoActiveProcess
	}
	return d.resume()
}

func (d *Session) resume() (*DebuggerState, error) {
	pid := d.inferior.Pid()
	st, err := d.inferior.Resume(d.bps)
	if err != nil {
		d.discardIfUntraceable(err)
		return nil, err
	}
	return d.describe(pid, st), nil
}

// describe builds the state reported for st. A process that is gone is
// dropped, a stopped one is resolved to its breakpoint and location.
func (d *Session) describe(pid int, st proc.Status) *DebuggerState {
	state := &DebuggerState{Status: st, Pid: pid}
	switch st.Kind {
	case proc.StatusExited, proc.StatusSignaled:
		if logflags.Debugger() {
			d.log.Debugf("process %d: %s", pid, st)
		}
		d.inferior = nil
		d.bps.Reset()
	case proc.StatusStopped:
		pc := st.PC
		if bp, err := proc.CurrentBreakpoint(d.inferior, d.bps); err == nil && bp != nil {
			state.Breakpoint = bp
			pc = bp.Addr
		}
		state.Function, _ = d.syms.FunctionForPC(pc)
		state.Line, _ = d.syms.LineForPC(pc)
	}
	return state
}

// SetBreakpoint adds a breakpoint at the location described by locStr and
// installs it in the current process, if there is one.
func (d *Session) SetBreakpoint(locStr string) (*proc.Breakpoint, error) {
	loc, err := parseLocationSpec(locStr)
	if err != nil {
		return nil, err
	}
	addr, err := loc.Find(d.syms)
	if err != nil {
		return nil, err
	}
	bp, added := d.bps.Add(addr)
	if !added {
		return nil, &BreakpointExistsError{ID: bp.ID, Addr: bp.Addr}
	}
	if fn, ok := d.syms.FunctionForPC(addr); ok {
		bp.FunctionName = fn.Name
	}
	if l, ok := d.syms.LineForPC(addr); ok {
		bp.File, bp.Line = l.File, l.Line
	}
	if d.inferior != nil {
		if err := proc.InstallAtStop(d.inferior, d.bps, bp); err != nil {
			d.discardIfUntraceable(err)
			d.bps.Remove(addr)
			return nil, err
		}
	}
	d.log.Infof("created breakpoint: %s", bp)
	return bp, nil
}

// ClearBreakpoint deletes the breakpoint with the given ID, removing it
// from the current process first.
func (d *Session) ClearBreakpoint(id int) (*proc.Breakpoint, error) {
	bp, ok := d.bps.GetByID(id)
	if !ok {
		return nil, &NoBreakpointError{ID: id}
	}
	if d.inferior != nil {
		if err := d.uninstall(bp); err != nil {
			d.discardIfUntraceable(err)
			return nil, err
		}
	}
	d.bps.Remove(bp.Addr)
	d.log.Infof("cleared breakpoint: %s", bp)
	return bp, nil
}

// ToggleBreakpoint enables a disabled breakpoint and disables an enabled
// one. A disabled breakpoint is kept in the table but never installed.
func (d *Session) ToggleBreakpoint(id int) (*proc.Breakpoint, error) {
	bp, ok := d.bps.GetByID(id)
	if !ok {
		return nil, &NoBreakpointError{ID: id}
	}
	if d.inferior != nil {
		var err error
		if bp.Enabled {
			err = d.uninstall(bp)
		} else {
			err = proc.InstallAtStop(d.inferior, d.bps, bp)
		}
		if err != nil {
			d.discardIfUntraceable(err)
			return nil, err
		}
	}
	bp.Enabled = !bp.Enabled
	return bp, nil
}

// uninstall removes bp from the current process. If the process is
// stopped at bp the PC is moved back onto the restored instruction.
func (d *Session) uninstall(bp *proc.Breakpoint) error {
	cur, err := proc.CurrentBreakpoint(d.inferior, d.bps)
	if err != nil {
		return err
	}
	if err := d.bps.Uninstall(d.inferior, bp); err != nil {
		return err
	}
	if cur == bp {
		return d.inferior.SetPC(bp.Addr)
	}
	return nil
}

// Breakpoints returns all breakpoints in the order they were created.
func (d *Session) Breakpoints() []*proc.Breakpoint {
	return d.bps.List()
}

// Stacktrace returns the call stack of the current process.
func (d *Session) Stacktrace() ([]proc.Stackframe, error) {
	if d.inferior == nil {
		return nil, ErrNoActiveProcess
	}
	return d.unwinder.Stacktrace(d.inferior, d.bps, d.syms)
}

// Disassemble decodes count instructions starting at the current
// instruction of the process.
func (d *Session) Disassemble(count int) ([]proc.AsmInstruction, error) {
	if d.inferior == nil {
		return nil, ErrNoActiveProcess
	}
	regs, err := d.inferior.Registers()
	if err != nil {
		return nil, err
	}
	pc := regs.PC()
	if bp, err := proc.CurrentBreakpoint(d.inferior, d.bps); err == nil && bp != nil {
		pc = bp.Addr
	}
	return proc.Disassemble(d.inferior, d.bps, d.syms, pc, count)
}

// Close kills the current process. It is safe to call Close more than
// once.
func (d *Session) Close() error {
	return d.detach()
}

func (d *Session) detach() error {
	if d.inferior == nil {
		return nil
	}
	pid := d.inferior.Pid()
	d.log.Infof("killing process %d", pid)
	err := d.inferior.Kill()
	d.inferior = nil
	d.bps.Reset()
	if err != nil {
		return fmt.Errorf("could not kill process %d: %w", pid, err)
	}
	return nil
}

// discard drops a process that can no longer be controlled.
func (d *Session) discard() {
	if err := d.inferior.Kill(); err != nil {
		d.log.Errorf("could not kill process %d: %v", d.inferior.Pid(), err)
	}
	d.inferior = nil
	d.bps.Reset()
}

// discardIfUntraceable discards the current process if err is a
// *proc.TraceError, anywhere in its chain.
func (d *Session) discardIfUntraceable(err error) bool {
	var traceErr *proc.TraceError
	if !errors.As(err, &traceErr) {
		return false
	}
	d.log.Errorf("discarding process %d: %v", d.inferior.Pid(), err)
	d.discard()
	return true
}

// splitJoined returns the messages of the errors joined in err.
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var r []string
		for _, e := range joined.Unwrap() {
			r = append(r, e.Error())
		}
		return r
	}
	return []string{err.Error()}
}
