//go:build !linux || !amd64

package native

import (
	"github.com/go-delve/deet/pkg/proc"
)

// Launch returns ErrNativeBackendDisabled.
func Launch(_ []string, _ LaunchOptions) (*Process, error) {
	return nil, ErrNativeBackendDisabled
}

func (dbp *Process) PeekWord(addr uint64) (uint64, error) {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) PokeWord(addr, word uint64) error {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) Registers() (proc.Registers, error) {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) SetPC(pc uint64) error {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) SingleStep() (proc.Status, error) {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) Continue() (proc.Status, error) {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) Wait() (proc.Status, error) {
	panic(ErrNativeBackendDisabled)
}

func (dbp *Process) Kill() error {
	panic(ErrNativeBackendDisabled)
}
