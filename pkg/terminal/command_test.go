package terminal

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-delve/deet/pkg/config"
	"github.com/go-delve/deet/pkg/debugger"
	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/pkg/proc/native"
	"github.com/go-delve/deet/pkg/proc/test"
	"github.com/go-delve/deet/pkg/symbols"
)

func TestMain(m *testing.M) {
	var logConf string
	flag.StringVar(&logConf, "log", "", "configures logging")
	flag.Parse()
	logflags.Setup(logConf != "", logConf, "")
	os.Exit(test.RunTestsWithFixtures(m))
}

// The fake program: main.main calls main.foo twice and exits with status
// 2, see test.FakeProcess for how it executes.
const (
	textBase  = 0x401000
	mainEntry = textBase
	fooEntry  = textBase + 0x20
	textEnd   = textBase + 0x60
	stackTop  = 0xc000
	fakePid   = 100
)

var fakeSymbols = &test.FakeSymbols{
	Functions: []symbols.Function{
		{Name: "main.main", Entry: mainEntry, End: fooEntry},
		{Name: "main.foo", Entry: fooEntry, End: fooEntry + 0x20},
	},
	Lines: []symbols.Line{
		{File: "/src/testprog.go", Line: 20, PC: mainEntry},
		{File: "/src/testprog.go", Line: 23, PC: mainEntry + 0x8},
		{File: "/src/testprog.go", Line: 15, PC: fooEntry},
		{File: "/src/testprog.go", Line: 16, PC: fooEntry + 0x4},
	},
}

type fakeLauncher struct {
	cmd   []string
	opts  native.LaunchOptions
	setup func(p *test.FakeProcess)
}

func (fl *fakeLauncher) launch(cmd []string, opts native.LaunchOptions) (proc.Inferior, error) {
	fl.cmd, fl.opts = cmd, opts
	p := test.NewFakeProcess(fakePid, mainEntry)
	code := make([]byte, textEnd-textBase)
	for i := range code {
		code[i] = 0x90
	}
	p.Map(textBase, code)
	p.Map(stackTop, make([]byte, 0x100))
	p.Regs.Rsp = stackTop
	p.MapWord(stackTop, mainEntry+0xd)
	p.Regs.Rbp = stackTop + 0x20
	p.ExitAt = textEnd - 1
	p.ExitCode = 2
	p.Loops = []*test.Loop{{At: fooEntry + 0x20, To: fooEntry, Times: 1}}
	if fl.setup != nil {
		fl.setup(p)
	}
	return p, nil
}

type FakeTerminal struct {
	*Term
	t        testing.TB
	launcher *fakeLauncher
	out      bytes.Buffer
}

func (ft *FakeTerminal) Exec(cmdstr string) (outstr string, err error) {
	ft.out.Reset()
	err = ft.cmds.Call(cmdstr, ft.Term)
	return ft.out.String(), err
}

func (ft *FakeTerminal) MustExec(cmdstr string) string {
	outstr, err := ft.Exec(cmdstr)
	if err != nil {
		ft.t.Fatalf("Error executing <%s>: %v", cmdstr, err)
	}
	return outstr
}

func (ft *FakeTerminal) AssertExec(cmdstr, tgt string) {
	out := ft.MustExec(cmdstr)
	if out != tgt {
		ft.t.Fatalf("output of %q mismatch:\ngot:\n%s\nexpected:\n%s", cmdstr, out, tgt)
	}
}

func (ft *FakeTerminal) AssertExecError(cmdstr, tgterr string) {
	_, err := ft.Exec(cmdstr)
	if err == nil {
		ft.t.Fatalf("Expected error executing %q", cmdstr)
	}
	if err.Error() != tgterr {
		ft.t.Fatalf("Expected error %q executing %q, got error %q", tgterr, cmdstr, err.Error())
	}
}

func newFakeTerminal(t *testing.T, session *debugger.Session) *FakeTerminal {
	conf := &config.Config{}
	conf.Defaults()
	ft := &FakeTerminal{Term: New(session, conf), t: t}
	ft.Term.stdout = &ft.out
	ft.Term.stderr = &ft.out
	ft.Term.colors = false
	t.Cleanup(func() {
		ft.Term.Close()
		session.Close()
	})
	return ft
}

func withFakeTerminal(t *testing.T, fn func(term *FakeTerminal)) {
	fl := &fakeLauncher{}
	session := debugger.New(&debugger.Config{
		Target:         "/src/testprog",
		EntryFunctions: []string{"main.main"},
		Launch:         fl.launch,
	}, fakeSymbols)
	ft := newFakeTerminal(t, session)
	ft.launcher = fl
	fn(ft)
}

func TestCommandDefault(t *testing.T) {
	var (
		cmds = Commands{}
		cmd  = cmds.Find("non-existant-command")
	)

	err := cmd(nil, "")
	if err == nil {
		t.Fatal("cmd() did not default")
	}

	if err.Error() != "command not available" {
		t.Fatal("wrong command output")
	}
}

func TestCommandReplayWithoutPreviousCommand(t *testing.T) {
	var (
		cmds = DebugCommands()
		cmd  = cmds.Find("")
		err  = cmd(nil, "")
	)

	if err != nil {
		t.Error("Null command not returned", err)
	}
}

func TestExecuteFile(t *testing.T) {
	breakCount := 0
	contCount := 0
	var breakArgs []string
	c := &Commands{
		cmds: []command{
			{aliases: []string{"continue"}, cmdFn: func(t *Term, args string) error {
				contCount++
				return nil
			}},
			{aliases: []string{"break"}, cmdFn: func(t *Term, args string) error {
				breakCount++
				breakArgs = append(breakArgs, args)
				return nil
			}},
		},
	}

	fixturesDir := test.FindFixturesDir()
	err := c.executeFile(nil, filepath.Join(fixturesDir, "bpfile"))
	if err != nil {
		t.Fatalf("executeFile: %v", err)
	}

	if breakCount != 2 || contCount != 1 {
		t.Fatalf("Wrong counts break: %d continue: %d\n", breakCount, contCount)
	}
	if breakArgs[0] != "foo" || breakArgs[1] != "main.main" {
		t.Fatalf("Wrong break arguments %q", breakArgs)
	}
}

func TestExecuteFileStopsOnExit(t *testing.T) {
	called := false
	c := &Commands{
		cmds: []command{
			{aliases: []string{"break"}, cmdFn: func(t *Term, args string) error {
				return ExitRequestError{}
			}},
			{aliases: []string{"continue"}, cmdFn: func(t *Term, args string) error {
				called = true
				return nil
			}},
		},
	}
	err := c.executeFile(nil, filepath.Join(test.FindFixturesDir(), "bpfile"))
	if _, ok := err.(ExitRequestError); !ok {
		t.Fatalf("expected ExitRequestError, got %v", err)
	}
	if called {
		t.Fatal("commands executed after exit")
	}
}

func TestParseNewArgv(t *testing.T) {
	for _, tc := range []struct {
		in     string
		argv   []string
		redirs [3]string
		err    string
	}{
		{in: ""},
		{in: "a b c", argv: []string{"a", "b", "c"}},
		{in: "a 'b c' \"d\"", argv: []string{"a", "b c", "d"}},
		{in: "a <in.txt >out.txt 2>err.txt", argv: []string{"a"}, redirs: [3]string{"in.txt", "out.txt", "err.txt"}},
		{in: "a < in.txt > out.txt", argv: []string{"a"}, redirs: [3]string{"in.txt", "out.txt", ""}},
		{in: "<in.txt", redirs: [3]string{"in.txt", "", ""}},
		{in: "a <in1 <in2", err: "redirect error: stdin redirected twice"},
		{in: "a `b`", err: "Backtick not supported in 'b'"},
		{in: "a | b", err: "illegal commandline 'a | b'"},
		{in: "a 2>", err: "redirect error: no file name for stderr"},
	} {
		argv, redirs, err := parseNewArgv(tc.in)
		if tc.err != "" {
			if err == nil || err.Error() != tc.err {
				t.Errorf("%q: expected error %q, got %v", tc.in, tc.err, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if strings.Join(argv, "|") != strings.Join(tc.argv, "|") || len(argv) != len(tc.argv) {
			t.Errorf("%q: argv %q, expected %q", tc.in, argv, tc.argv)
		}
		if redirs != tc.redirs {
			t.Errorf("%q: redirects %q, expected %q", tc.in, redirs, tc.redirs)
		}
	}
}

func TestBreakpointHitTwice(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.AssertExec("break foo", "Breakpoint 1 set at 0x401020 for main.foo() /src/testprog.go:15\n")
		term.AssertExec("run", "> [Breakpoint 1] main.foo() /src/testprog.go:15 (PC: 0x401020)\n")
		term.AssertExec("bt", "0  0x0000000000401020 in main.foo\n"+
			"   at /src/testprog.go:15\n"+
			"1  0x000000000040100d in main.main\n"+
			"   at /src/testprog.go:23\n")
		term.AssertExec("c", "> [Breakpoint 1] main.foo() /src/testprog.go:15 (PC: 0x401020)\n")
		term.AssertExec("continue", "Process 100 has exited with status 2\n")
		term.AssertExecError("continue", debugger.ErrNoActiveProcess.Error())
		term.AssertExecError("bt", debugger.ErrNoActiveProcess.Error())
	})
}

func TestBreakpointErrors(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.AssertExecError("break", "not enough arguments")

		_, err := term.Exec("break *0xnothex")
		var addrErr *debugger.InvalidAddressSyntaxError
		if !errors.As(err, &addrErr) {
			t.Fatalf("expected InvalidAddressSyntaxError, got %v", err)
		}
		term.AssertExecError("break 99", "could not find code for line 99")
		term.AssertExecError("b nosuchfunc", "could not find function nosuchfunc")

		term.MustExec("break 16")
		term.AssertExecError("breakpoint *401024", "Breakpoint 1 exists at 0x401024")
		term.AssertExec("breakpoints", "Breakpoint 1 at 0x401024 for main.foo() /src/testprog.go:16\n")
	})
}

func TestUnmappedBreakpoint(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.AssertExec("break *0xdeadbeef", "Breakpoint 1 set at 0xdeadbeef\n")
		out := term.MustExec("run")
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		if len(lines) != 2 {
			t.Fatalf("unexpected output of run: %q", out)
		}
		if !strings.HasPrefix(lines[0], "Warning: could not install breakpoint 1: ") {
			t.Errorf("missing warning: %q", lines[0])
		}
		if lines[1] != "Process 100 has exited with status 2" {
			t.Errorf("unexpected status line: %q", lines[1])
		}
	})
}

func TestToggleAndClear(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.MustExec("break 23")
		term.MustExec("break foo")
		term.AssertExec("toggle 2", "Breakpoint 2 disabled at 0x401020 for main.foo() /src/testprog.go:15\n")
		term.AssertExec("bp", "Breakpoint 1 at 0x401008 for main.main() /src/testprog.go:23\n"+
			"Breakpoint 2 at 0x401020 for main.foo() /src/testprog.go:15 (disabled)\n")
		term.AssertExec("clear 1", "Breakpoint 1 cleared at 0x401008 for main.main() /src/testprog.go:23\n")
		term.AssertExec("bp", "Breakpoint 1 at 0x401020 for main.foo() /src/testprog.go:15 (disabled)\n")
		term.AssertExec("run", "Process 100 has exited with status 2\n")
		term.AssertExec("toggle 1", "Breakpoint 1 enabled at 0x401020 for main.foo() /src/testprog.go:15\n")
		term.AssertExec("run", "> [Breakpoint 1] main.foo() /src/testprog.go:15 (PC: 0x401020)\n")

		term.AssertExecError("clear", "not enough arguments")
		term.AssertExecError("clear foo", `"foo" is not a breakpoint id`)
		term.AssertExecError("toggle 9", "no breakpoint with id 9")
	})
}

func TestRunArguments(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.MustExec("run a 'b c' <in.txt")
		cmd := term.launcher.cmd
		if len(cmd) != 3 || cmd[0] != "/src/testprog" || cmd[1] != "a" || cmd[2] != "b c" {
			t.Fatalf("unexpected command line %q", cmd)
		}
		if term.launcher.opts.Redirects != [3]string{"in.txt", "", ""} {
			t.Fatalf("unexpected redirects %q", term.launcher.opts.Redirects)
		}
		term.MustExec("r")
		if cmd := term.launcher.cmd; len(cmd) != 3 || cmd[2] != "b c" {
			t.Fatalf("arguments not reused: %q", cmd)
		}
		term.AssertExecError("run a <x <y", "redirect error: stdin redirected twice")
	})
}

func TestSignalStop(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.launcher.setup = func(p *test.FakeProcess) {
			p.Loops = []*test.Loop{{At: mainEntry + 0x4, To: 0x9000, Times: 1}}
		}
		term.AssertExec("run", "Process 100 stopped by signal SIGSEGV at 0x9000\n")
	})
}

func TestSignalStopInFunction(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.launcher.setup = func(p *test.FakeProcess) {
			p.BeforeContinue = func(p *test.FakeProcess) {
				delete(p.Mem, fooEntry+0x6)
			}
		}
		term.AssertExec("run", "> main.foo() /src/testprog.go:16 (PC: 0x401026) received SIGSEGV\n")
	})
}

func TestDisassembleCommand(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.AssertExecError("disass", debugger.ErrNoActiveProcess.Error())
		term.MustExec("break foo")
		term.MustExec("run")
		out := term.MustExec("disassemble 2")
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
		if len(lines) != 3 {
			t.Fatalf("unexpected output %q", out)
		}
		if lines[0] != "TEXT main.foo(SB) /src/testprog.go" {
			t.Errorf("unexpected header %q", lines[0])
		}
		if f := strings.Fields(lines[1]); len(f) != 5 || f[0] != "=>" || f[1] != "testprog.go:15" || f[2] != "0x401020*" || f[3] != "90" || f[4] != "nop" {
			t.Errorf("unexpected first instruction %q", lines[1])
		}
		if f := strings.Fields(lines[2]); len(f) != 4 || f[1] != "0x401021" {
			t.Errorf("unexpected second instruction %q", lines[2])
		}

		term.conf.DisassembleCount = 3
		out = term.MustExec("disass")
		if n := strings.Count(out, "\n"); n != 4 {
			t.Errorf("expected 3 instructions, got %q", out)
		}
		term.AssertExecError("disass x", `wrong argument: "x" is not a positive number`)
	})
}

func TestHelp(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		out := term.MustExec("help")
		for _, s := range []string{"break (alias: b | breakpoint)", "continue (alias: c)", "exit (alias: quit | q)", "Running the program:"} {
			if !strings.Contains(out, s) {
				t.Errorf("help output does not contain %q", s)
			}
		}
		out = term.MustExec("h c")
		if out != "Run until breakpoint or program termination.\n" {
			t.Errorf("unexpected help for continue: %q", out)
		}
		term.AssertExecError("help nosuchcmd", "command not available")
	})
}

func TestUnknownCommand(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.AssertExecError("frobnicate", "command not available")
		if _, err := term.Exec("quit"); err != (ExitRequestError{}) {
			t.Fatalf("expected ExitRequestError, got %v", err)
		}
	})
}

func TestConfig(t *testing.T) {
	var term Term
	var out bytes.Buffer
	term.conf = &config.Config{}
	term.cmds = DebugCommands()
	term.stdout = &out

	err := configureCmd(&term, "nonexistent-parameter 10")
	if err == nil {
		t.Fatalf("expected error executing configureCmd(nonexistent-parameter)")
	}
	if err := configureCmd(&term, ""); err == nil {
		t.Fatal("expected error executing configureCmd without arguments")
	}

	err = configureCmd(&term, "disassemble-count 3")
	if err != nil {
		t.Fatalf("error executing configureCmd(disassemble-count): %v", err)
	}
	if term.conf.DisassembleCount != 3 {
		t.Fatalf("expected DisassembleCount 3, got %d", term.conf.DisassembleCount)
	}
	err = configureCmd(&term, "max-stack-depth   10")
	if err != nil {
		t.Fatalf("error executing configureCmd(max-stack-depth   10): %v", err)
	}
	if term.conf.MaxStackDepth != 10 {
		t.Fatalf("expected MaxStackDepth 10, got %d", term.conf.MaxStackDepth)
	}
	if err := configureCmd(&term, "max-stack-depth -1"); err == nil {
		t.Fatal("expected error for a negative stack depth")
	}
	err = configureCmd(&term, "symbol-cache-size 5")
	if err != nil {
		t.Fatalf("error executing configureCmd(symbol-cache-size): %v", err)
	}
	if term.conf.SymbolCacheSize == nil || *term.conf.SymbolCacheSize != 5 {
		t.Fatalf("expected SymbolCacheSize 5, got %v", term.conf.SymbolCacheSize)
	}
	err = configureCmd(&term, "entry-functions main.main 'runtime.main'")
	if err != nil {
		t.Fatalf("error executing configureCmd(entry-functions): %v", err)
	}
	if strings.Join(term.conf.EntryFunctions, ",") != "main.main,runtime.main" {
		t.Fatalf("unexpected EntryFunctions %q", term.conf.EntryFunctions)
	}
	err = configureCmd(&term, "entry-functions `main.main`")
	if err == nil || err.Error() != "Backtick not supported in 'main.main'" {
		t.Fatalf("unexpected error for a backtick in entry-functions: %v", err)
	}
	if strings.Join(term.conf.EntryFunctions, ",") != "main.main,runtime.main" {
		t.Fatalf("EntryFunctions changed by a failed configure command: %q", term.conf.EntryFunctions)
	}

	err = configureCmd(&term, "alias break stop")
	if err != nil {
		t.Fatalf("error executing configureCmd(alias break stop): %v", err)
	}
	if len(term.conf.Aliases["break"]) != 1 || term.conf.Aliases["break"][0] != "stop" {
		t.Fatalf("aliases not changed after configure command %v", term.conf.Aliases)
	}
	if !term.cmds.isBreakCommand("stop") {
		t.Fatal("alias not merged into the command table")
	}
	err = configureCmd(&term, "alias stop")
	if err != nil {
		t.Fatalf("error executing configureCmd(alias stop): %v", err)
	}
	if len(term.conf.Aliases["break"]) != 0 {
		t.Fatalf("aliases not removed after configure command %v", term.conf.Aliases)
	}
	if term.cmds.isBreakCommand("stop") {
		t.Fatal("alias still in the command table")
	}
	if !term.cmds.isBreakCommand("b") {
		t.Fatal("builtin alias removed")
	}

	if err := configureCmd(&term, "-list"); err != nil {
		t.Fatalf("error executing configureCmd(-list): %v", err)
	}
	if !strings.Contains(out.String(), "disassemble-count 3\n") {
		t.Fatalf("unexpected -list output:\n%s", out.String())
	}
}

func TestMergeAliases(t *testing.T) {
	cmds := DebugCommands()
	cmds.Merge(map[string][]string{"continue": {"go"}, "nosuchcmd": {"x"}})
	if cmds.Find("go") == nil || cmds.Find("x") == nil {
		t.Fatal("Find returned nil")
	}
	if err := cmds.Find("x")(nil, ""); err != noCmdError {
		t.Fatalf("alias of unknown command added: %v", err)
	}
	var bound bool
	for _, c := range cmds.cmds {
		if c.match("go") {
			bound = c.match("continue")
		}
	}
	if !bound {
		t.Fatal("alias not bound to the continue command")
	}
}

func TestComplete(t *testing.T) {
	withFakeTerminal(t, func(term *FakeTerminal) {
		term.funcs.Add("main.foo", nil)
		term.funcs.Add("main.main", nil)
		term.funcs.Add("fmt.Println", nil)

		head, completions, tail := term.complete("brea", 4)
		if head != "" || tail != "" || strings.Join(completions, ",") != "break,breakpoint,breakpoints" {
			t.Errorf("unexpected command completion %q %q %q", head, completions, tail)
		}
		head, completions, _ = term.complete("b fo", 4)
		if head != "b " || len(completions) != 1 || completions[0] != "main.foo" {
			t.Errorf("unexpected function completion %q %q", head, completions)
		}
		_, completions, _ = term.complete("break fmt.Pr", 12)
		if len(completions) != 1 || completions[0] != "fmt.Println" {
			t.Errorf("unexpected function completion %q", completions)
		}
		_, completions, _ = term.complete("continue fo", 11)
		if len(completions) != 0 {
			t.Errorf("unexpected completion of continue arguments %q", completions)
		}
	})
}
