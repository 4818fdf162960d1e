package native

import (
	"os"
)

// LaunchOptions configures the process started by Launch.
type LaunchOptions struct {
	// WorkingDir is the working directory of the new process, the
	// debugger's own if empty.
	WorkingDir string
	// TTY is the path of a terminal the process is started on, in a new
	// session.
	TTY string
	// Redirects are paths for the standard input, output and error of the
	// process. Empty entries are inherited from the debugger.
	Redirects [3]string
	// Env is appended to the environment of the debugger.
	Env []string
}

func openRedirects(redirects [3]string) (stdin, stdout, stderr *os.File, closefn func(), err error) {
	toclose := []*os.File{}

	if redirects[0] != "" {
		stdin, err = os.Open(redirects[0])
		if err != nil {
			return nil, nil, nil, nil, err
		}
		toclose = append(toclose, stdin)
	} else {
		stdin = os.Stdin
	}

	create := func(path string, dflt *os.File) *os.File {
		if path == "" {
			return dflt
		}
		var f *os.File
		f, err = os.Create(path)
		if f != nil {
			toclose = append(toclose, f)
		}
		return f
	}

	closefn = func() {
		for _, f := range toclose {
			_ = f.Close()
		}
	}

	stdout = create(redirects[1], os.Stdout)
	if err != nil {
		closefn()
		return nil, nil, nil, nil, err
	}

	stderr = create(redirects[2], os.Stderr)
	if err != nil {
		closefn()
		return nil, nil, nil, nil, err
	}

	return stdin, stdout, stderr, closefn, nil
}
