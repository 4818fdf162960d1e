package cmds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/deet/pkg/config"
	"github.com/go-delve/deet/pkg/debugger"
	"github.com/go-delve/deet/pkg/logflags"
	"github.com/go-delve/deet/pkg/symbols"
	"github.com/go-delve/deet/pkg/terminal"
	"github.com/go-delve/deet/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string
	// initFile is the path to initialization file.
	initFile string
	// workingDir is the working directory for running the program.
	workingDir string
	// tty is used to provide an alternate TTY for the program you wish to debug.
	tty string

	// rootCommand is the root of the command tree.
	rootCommand *cobra.Command
)

const deetCommandLongDesc = `Deet is a debugger for native executables on linux/amd64.

Deet loads the debug information of an executable and starts an interactive
session in which breakpoints can be set on functions, lines and addresses.
The program is started with the 'run' command and is stopped every time it
hits a breakpoint.

Arguments following the executable are passed to the program when 'run' is
called without arguments. Use ` + "`--`" + ` to separate them from deet's flags:

` + "`deet --log ./hello -- --config conf/config.toml`"

// New returns an initialized command tree.
func New() *cobra.Command {
	// Main deet root command.
	rootCommand = &cobra.Command{
		Use:   "deet [flags] <executable> [args...]",
		Short: "Deet is a debugger for native executables.",
		Long:  deetCommandLongDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("you must provide a path to an executable")
			}
			return nil
		},
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(execute(args))
		},
	}
	// Flags after the executable belong to the program.
	rootCommand.Flags().SetInterspersed(false)

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().Var(logOutputValue{&logOutput}, "log-output", `Comma separated list of components that should produce debug output (debugger, proc, symbols).`)
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor.")
	rootCommand.Flags().StringVar(&initFile, "init", "", "Init file, executed by the terminal before the first prompt.")
	rootCommand.Flags().StringVar(&workingDir, "wd", "", "Working directory for running the program.")
	rootCommand.Flags().StringVar(&tty, "tty", "", "TTY to use for the target program.")

	// 'version' subcommand.
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Deet Debugger\n%s\n", version.DeetVersion)
			if log {
				fmt.Fprintln(cmd.OutOrStdout(), version.BuildInfo())
			}
		},
	}
	rootCommand.AddCommand(versionCommand)

	return rootCommand
}

// logOutputValue is the value of --log-output.
type logOutputValue struct {
	s *string
}

var _ pflag.Value = logOutputValue{}

func (v logOutputValue) String() string {
	if v.s == nil {
		return ""
	}
	return *v.s
}

func (v logOutputValue) Set(s string) error {
	for _, component := range strings.Split(s, ",") {
		switch component {
		case "debugger", "proc", "symbols":
		default:
			return fmt.Errorf("unknown log component %q", component)
		}
	}
	*v.s = s
	return nil
}

func (v logOutputValue) Type() string {
	return "string"
}

func execute(processArgs []string) int {
	if err := logflags.Setup(log, logOutput, logDest); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer logflags.Close()

	conf, err := config.LoadConfig()
	if err != nil {
		// conf holds the defaults
		fmt.Fprintf(os.Stderr, "%v\n", err)
	}

	session, err := newSession(processArgs, conf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	term := terminal.New(session, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Println(err)
	}
	return status
}

// newSession loads the symbols of the executable named by processArgs[0]
// and creates the debugging session for it.
func newSession(processArgs []string, conf *config.Config) (*debugger.Session, error) {
	target, err := filepath.Abs(processArgs[0])
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(target)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() || fi.Mode()&0111 == 0 {
		return nil, fmt.Errorf("%s is not executable", processArgs[0])
	}

	cacheSize := 0
	if conf.SymbolCacheSize != nil {
		cacheSize = *conf.SymbolCacheSize
	}
	syms, err := symbols.Load(target, symbols.Options{
		EntryFunctions: conf.EntryFunctions,
		CacheSize:      cacheSize,
	})
	if err != nil {
		return nil, err
	}

	return debugger.New(&debugger.Config{
		Target:         target,
		Args:           processArgs[1:],
		WorkingDir:     workingDir,
		TTY:            tty,
		EntryFunctions: conf.EntryFunctions,
		MaxStackDepth:  conf.MaxStackDepth,
	}, syms), nil
}
