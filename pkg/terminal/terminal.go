package terminal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/go-delve/deet/pkg/config"
	"github.com/go-delve/deet/pkg/debugger"
	"github.com/go-delve/deet/pkg/proc"
)

const (
	historyFile                 string = ".deet_history"
	terminalHighlightEscapeCode string = "\033[%2dm"
	terminalResetEscapeCode     string = "\033[0m"
)

const (
	ansiRed    = 31
	ansiYellow = 33
	ansiBlue   = 34
)

// Term represents the terminal running deet.
type Term struct {
	session  *debugger.Session
	conf     *config.Config
	prompt   string
	line     *liner.State
	cmds     *Commands
	colors   bool
	stdout   io.Writer
	stderr   io.Writer
	InitFile string

	// funcs holds the function names of the target, for completion.
	funcs *trie.Trie
	// lastCmd is repeated when an empty line is entered.
	lastCmd string
}

// New returns a new Term.
func New(session *debugger.Session, conf *config.Config) *Term {
	if conf == nil {
		conf = &config.Config{}
		conf.Defaults()
	}
	cmds := DebugCommands()
	if conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	w, colors := getColorableWriter()

	funcs := trie.New()
	for _, name := range session.FunctionNames() {
		funcs.Add(name, nil)
	}

	return &Term{
		session: session,
		conf:    conf,
		prompt:  "(deet) ",
		line:    liner.NewLiner(),
		cmds:    cmds,
		colors:  colors,
		stdout:  w,
		stderr:  os.Stderr,
		funcs:   funcs,
	}
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	t.line.Close()
}

// sigtermGuard restores the terminal and exits when deet is asked to
// terminate. The target is killed by the kernel once its tracer is gone.
func (t *Term) sigtermGuard(ch <-chan os.Signal) {
	sig, ok := <-ch
	if !ok {
		return
	}
	fmt.Fprintf(t.stderr, "received %s, exiting\n", sig)
	t.Close()
	os.Exit(1)
}

// Run begins running deet in the terminal.
func (t *Term) Run() (int, error) {
	defer t.Close()

	// SIGINT stops the target, which shares our process group. It must not
	// kill the debugger.
	intch := make(chan os.Signal, 1)
	signal.Notify(intch, syscall.SIGINT)
	defer func() {
		signal.Stop(intch)
		close(intch)
	}()
	go func() {
		for range intch {
		}
	}()

	termch := make(chan os.Signal, 1)
	signal.Notify(termch, syscall.SIGTERM, syscall.SIGHUP)
	defer func() {
		signal.Stop(termch)
		close(termch)
	}()
	go t.sigtermGuard(termch)

	t.line.SetCtrlCAborts(true)
	t.line.SetWordCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}
	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	if t.InitFile != "" {
		err := t.cmds.executeFile(t, t.InitFile)
		if err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			var internalErr *proc.InternalError
			if errors.As(err, &internalErr) {
				t.session.Close()
				return 1, err
			}
			fmt.Fprintf(t.stderr, "Error executing init file: %s\n", err)
		}
	}

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == liner.ErrPromptAborted {
				continue
			}
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return t.handleExit()
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if strings.TrimSpace(cmdstr) == "" {
			cmdstr = t.lastCmd
		} else {
			t.lastCmd = cmdstr
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return t.handleExit()
			}
			var internalErr *proc.InternalError
			if errors.As(err, &internalErr) {
				t.session.Close()
				return 1, err
			}
			fmt.Fprintf(t.stderr, "Command failed: %s\n", err)
		}
	}
}

// complete completes command names for the first word of the line and
// function names for the argument of the break command.
func (t *Term) complete(line string, pos int) (head string, completions []string, tail string) {
	head, word, tail := line[:pos], "", line[pos:]
	if i := strings.LastIndexAny(head, " \t"); i >= 0 {
		head, word = head[:i+1], head[i+1:]
	} else {
		head, word = "", head
	}

	if strings.TrimSpace(head) == "" {
		return head, t.cmds.complete(word), tail
	}
	fields := strings.Fields(head)
	if len(fields) != 1 || !t.cmds.isBreakCommand(fields[0]) {
		return head, nil, tail
	}
	completions = t.funcs.PrefixSearch(word)
	// unqualified names complete to functions of the main package
	if !strings.Contains(word, ".") {
		completions = append(completions, t.funcs.PrefixSearch("main."+word)...)
	}
	sort.Strings(completions)
	return head, completions, tail
}

// Println prints a line to the terminal, highlighting prefix.
func (t *Term) Println(prefix, str string) {
	fmt.Fprintf(t.stdout, "%s%s\n", t.highlight(ansiBlue, prefix), str)
}

func (t *Term) highlight(color int, s string) string {
	if !t.colors || s == "" {
		return s
	}
	return fmt.Sprintf(terminalHighlightEscapeCode, color) + s + terminalResetEscapeCode
}

// formatPath makes paths below the working directory relative to it.
func (t *Term) formatPath(path string) string {
	if path == "" {
		return "?"
	}
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(wd, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return "." + string(filepath.Separator) + rel
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) handleExit() (int, error) {
	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Println("Error saving history file:", err)
	} else {
		if f, err := os.OpenFile(fullHistoryFile, os.O_RDWR|os.O_TRUNC, 0666); err == nil {
			_, err = t.line.WriteHistory(f)
			if err != nil {
				fmt.Println("readline history error:", err)
			}
			f.Close()
		}
	}

	if err := t.session.Close(); err != nil {
		return 1, err
	}
	return 0, nil
}
