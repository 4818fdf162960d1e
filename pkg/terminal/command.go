// Package terminal implements functions for responding to user
// input and dispatching to appropriate backend commands.
package terminal

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-delve/deet/pkg/debugger"
	"github.com/go-delve/deet/pkg/proc"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands for the deet terminal.
type Commands struct {
	cmds []command
}

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"break", "b", "breakpoint"}, group: breakCmds, cmdFn: breakpoint, helpMsg: `Sets a breakpoint.

	break <location>

The location is one of:

	*<address>	a hexadecimal address, the 0x prefix is optional
	<line>		a line of the file containing the entry function
	<func>:<line>	a line of the file containing func
	<func>		the entry point of a function, "foo" finds "main.foo"

Breakpoints set before the program is started are installed when it starts.`},
		{aliases: []string{"breakpoints", "bp"}, group: breakCmds, cmdFn: breakpoints, helpMsg: "Print out info for active breakpoints."},
		{aliases: []string{"clear"}, group: breakCmds, cmdFn: clear, helpMsg: `Deletes breakpoint.

	clear <breakpoint id>

Breakpoints created after the deleted one are renumbered.`},
		{aliases: []string{"toggle"}, group: breakCmds, cmdFn: toggle, helpMsg: `Toggles on or off a breakpoint.

	toggle <breakpoint id>

A disabled breakpoint is remembered but never installed.`},
		{aliases: []string{"run", "r"}, group: runCmds, cmdFn: run, helpMsg: `Starts the program, killing the current process if there is one.

	run [argv...] [redirects...]

If argv is omitted the arguments of the previous run are used again.

A list of file redirections can be specified after the argument list. A syntax similar to Unix shells is used:

	<input.txt	redirects the standard input of the target process from input.txt
	>output.txt	redirects the standard output of the target process to output.txt
	2>error.txt	redirects the standard error of the target process to error.txt
`},
		{aliases: []string{"continue", "c"}, group: runCmds, cmdFn: cont, helpMsg: "Run until breakpoint or program termination."},
		{aliases: []string{"backtrace", "bt"}, group: stackCmds, cmdFn: stackCommand, helpMsg: `Print stack trace.

The stack is walked following the chain of saved frame pointers, up to the entry function.`},
		{aliases: []string{"disassemble", "disass"}, group: stackCmds, cmdFn: disassCommand, helpMsg: `Disassembler.

	disassemble [count]

Disassembles count instructions starting at the current instruction. The default count is the disassemble-count configuration parameter.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> <value>

Changes the value of a configuration parameter.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the debugger, killing the process being debugged.`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// An empty command does nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

// complete returns the aliases starting with prefix.
func (c *Commands) complete(prefix string) (r []string) {
	prefix = strings.ToLower(prefix)
	for _, cmd := range c.cmds {
		for _, alias := range cmd.aliases {
			if strings.HasPrefix(alias, prefix) {
				r = append(r, alias)
			}
		}
	}
	sort.Strings(r)
	return r
}

func (c *Commands) isBreakCommand(cmdstr string) bool {
	for _, cmd := range c.cmds {
		if cmd.aliases[0] == "break" {
			return cmd.match(cmdstr)
		}
	}
	return false
}

var noCmdError = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return noCmdError
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return noCmdError
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := cmd.helpMsg
			if idx := strings.Index(h, "\n"); idx >= 0 {
				h = h[:idx]
			}
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

func run(t *Term, args string) error {
	newArgv, newRedirects, err := parseNewArgv(args)
	if err != nil {
		return err
	}
	state, err := t.session.Run(newArgv, newRedirects)
	if err != nil {
		return err
	}
	printState(t, state)
	return nil
}

// parseNewArgv splits the arguments of the run command into the argument
// vector of the target and its redirects.
// splitArgv splits s into pipe separated commands of shell words.
// Backticks are rejected with an error naming the quoted text.
func splitArgv(s string) ([][]string, error) {
	var backtickErr error
	v, err := argv.Argv(s, func(s string) (string, error) {
		backtickErr = fmt.Errorf("Backtick not supported in '%s'", s)
		return "", backtickErr
	}, nil)
	if backtickErr != nil {
		return nil, backtickErr
	}
	return v, err
}

func parseNewArgv(args string) (newArgv []string, newRedirects [3]string, err error) {
	if args == "" {
		return nil, [3]string{}, nil
	}
	v, err := splitArgv(args)
	if err != nil {
		return nil, [3]string{}, err
	}
	if len(v) != 1 {
		return nil, [3]string{}, fmt.Errorf("illegal commandline '%s'", args)
	}
	w := v[0]
	redirs := [3]string{}
	for len(w) > 0 {
		var found bool
		var err error
		w, found, err = parseOneRedirect(w, &redirs)
		if err != nil {
			return nil, [3]string{}, err
		}
		if !found {
			break
		}
	}
	return w, redirs, nil
}

func parseOneRedirect(w []string, redirs *[3]string) ([]string, bool, error) {
	prefixes := []string{"<", ">", "2>"}
	names := []string{"stdin", "stdout", "stderr"}
	if len(w) >= 2 {
		for _, prefix := range prefixes {
			if w[len(w)-2] == prefix {
				w[len(w)-2] += w[len(w)-1]
				w = w[:len(w)-1]
				break
			}
		}
	}
	for i, prefix := range prefixes {
		if strings.HasPrefix(w[len(w)-1], prefix) {
			if redirs[i] != "" {
				return nil, false, fmt.Errorf("redirect error: %s redirected twice", names[i])
			}
			redirs[i] = w[len(w)-1][len(prefix):]
			if redirs[i] == "" {
				return nil, false, fmt.Errorf("redirect error: no file name for %s", names[i])
			}
			return w[:len(w)-1], true, nil
		}
	}
	return w, false, nil
}

func cont(t *Term, args string) error {
	state, err := t.session.Continue()
	if err != nil {
		return err
	}
	printState(t, state)
	return nil
}

// printState describes the state of the process after it ran.
func printState(t *Term, state *debugger.DebuggerState) {
	for _, w := range state.Warnings {
		fmt.Fprintf(t.stdout, "%s %s\n", t.highlight(ansiRed, "Warning:"), w)
	}
	st := state.Status
	switch st.Kind {
	case proc.StatusExited:
		fmt.Fprintf(t.stdout, "Process %d has exited with status %d\n", state.Pid, st.ExitCode)
	case proc.StatusSignaled:
		fmt.Fprintf(t.stdout, "Process %d has been terminated by signal %s\n", state.Pid, proc.SignalName(st.Signal))
	case proc.StatusStopped:
		pc := st.PC
		prefix := "> "
		if state.Breakpoint != nil {
			pc = state.Breakpoint.Addr
			prefix = fmt.Sprintf("> [Breakpoint %d] ", state.Breakpoint.ID)
		}
		if state.Function == nil || state.Line == nil {
			fmt.Fprintf(t.stdout, "Process %d stopped by signal %s at %#x\n", state.Pid, proc.SignalName(st.Signal), pc)
			return
		}
		s := fmt.Sprintf("%s() %s:%d (PC: %#x)", state.Function.Name, t.formatPath(state.Line.File), state.Line.Line, pc)
		if st.Signal != syscall.SIGTRAP {
			s += " " + t.highlight(ansiYellow, "received "+proc.SignalName(st.Signal))
		}
		t.Println(prefix, s)
	}
}

func breakpoint(t *Term, args string) error {
	if args == "" {
		return fmt.Errorf("not enough arguments")
	}
	bp, err := t.session.SetBreakpoint(args)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d set at %s\n", bp.ID, t.formatBreakpointLocation(bp))
	return nil
}

func breakpoints(t *Term, args string) error {
	for _, bp := range t.session.Breakpoints() {
		state := ""
		if !bp.Enabled {
			state = " (disabled)"
		}
		fmt.Fprintf(t.stdout, "Breakpoint %d at %s%s\n", bp.ID, t.formatBreakpointLocation(bp), state)
	}
	return nil
}

func parseBreakpointID(args string) (int, error) {
	if args == "" {
		return 0, fmt.Errorf("not enough arguments")
	}
	id, err := strconv.Atoi(args)
	if err != nil {
		return 0, fmt.Errorf("%q is not a breakpoint id", args)
	}
	return id, nil
}

func clear(t *Term, args string) error {
	id, err := parseBreakpointID(args)
	if err != nil {
		return err
	}
	bp, err := t.session.ClearBreakpoint(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d cleared at %s\n", id, t.formatBreakpointLocation(bp))
	return nil
}

func toggle(t *Term, args string) error {
	id, err := parseBreakpointID(args)
	if err != nil {
		return err
	}
	bp, err := t.session.ToggleBreakpoint(id)
	if err != nil {
		return err
	}
	state := "enabled"
	if !bp.Enabled {
		state = "disabled"
	}
	fmt.Fprintf(t.stdout, "Breakpoint %d %s at %s\n", bp.ID, state, t.formatBreakpointLocation(bp))
	return nil
}

func (t *Term) formatBreakpointLocation(bp *proc.Breakpoint) string {
	var out bytes.Buffer
	fmt.Fprintf(&out, "%#x", bp.Addr)
	if bp.FunctionName == "" && bp.File == "" {
		return out.String()
	}
	fmt.Fprintf(&out, " for ")
	if bp.FunctionName != "" {
		fmt.Fprintf(&out, "%s() ", bp.FunctionName)
	}
	if bp.File != "" {
		fmt.Fprintf(&out, "%s:%d", t.formatPath(bp.File), bp.Line)
	}
	return strings.TrimSuffix(out.String(), " ")
}

func stackCommand(t *Term, args string) error {
	stack, err := t.session.Stacktrace()
	printStack(t, stack)
	return err
}

func digits(n int) int {
	if n <= 0 {
		return 1
	}
	return int(math.Floor(math.Log10(float64(n)))) + 1
}

func printStack(t *Term, stack []proc.Stackframe) {
	if len(stack) == 0 {
		return
	}

	d := digits(len(stack) - 1)
	fmtstr := "%" + strconv.Itoa(d) + "d  0x%016x in %s\n"
	s := strings.Repeat(" ", d+2)

	for i := range stack {
		name := "?"
		if stack[i].Current.Fn != nil {
			name = stack[i].Current.Fn.Name
		}
		fmt.Fprintf(t.stdout, fmtstr, i, stack[i].Current.PC, name)
		if stack[i].Current.File != "" {
			fmt.Fprintf(t.stdout, "%sat %s:%d\n", s, t.formatPath(stack[i].Current.File), stack[i].Current.Line)
		}
	}
}

func disassCommand(t *Term, args string) error {
	count := t.conf.DisassembleCount
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return fmt.Errorf("wrong argument: %q is not a positive number", args)
		}
		count = n
	}
	if count <= 0 {
		count = 1
	}
	insts, err := t.session.Disassemble(count)
	if err != nil {
		return err
	}
	disasmPrint(insts, t.stdout)
	return nil
}

// ExitRequestError is returned when the user
// exits deet.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func (c *Commands) executeFile(t *Term, name string) error {
	fh, err := os.Open(name)
	if err != nil {
		return err
	}
	defer fh.Close()

	scanner := bufio.NewScanner(fh)
	lineno := 0
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineno++

		if line == "" || line[0] == '#' {
			continue
		}

		if err := c.Call(line, t); err != nil {
			if _, isExitRequest := err.(ExitRequestError); isExitRequest {
				return err
			}
			var internalErr *proc.InternalError
			if errors.As(err, &internalErr) {
				return err
			}
			fmt.Fprintf(t.stdout, "%s:%d: %v\n", name, lineno, err)
		}
	}

	return scanner.Err()
}
