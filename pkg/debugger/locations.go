package debugger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// LocationSpec is a parsed breakpoint location.
type LocationSpec interface {
	Find(syms SymbolTable) (uint64, error)
}

// AddrLocationSpec is a raw address, `*0x401000` or `*401000`.
type AddrLocationSpec struct {
	Addr uint64
}

// LineLocationSpec is a line of the file containing the entry function,
// or of the file of Func if it is set (`main.foo:12`).
type LineLocationSpec struct {
	Func string
	Line int
}

// FuncLocationSpec is the entry point of a function.
type FuncLocationSpec struct {
	// PackageName is the qualifier of BaseName, it may be empty.
	PackageName string
	BaseName    string
}

func parseLocationSpec(locStr string) (LocationSpec, error) {
	rest := strings.TrimSpace(locStr)

	malformed := func(reason string) error {
		return fmt.Errorf("Malformed breakpoint location \"%s\": %s", locStr, reason)
	}

	if len(rest) == 0 {
		return nil, malformed("empty string")
	}

	if rest[0] == '*' {
		hex := strings.TrimPrefix(strings.ToLower(rest[1:]), "0x")
		addr, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			var numErr *strconv.NumError
			if errors.As(err, &numErr) {
				err = numErr.Err
			}
			return nil, &InvalidAddressSyntaxError{Spec: locStr, Err: err}
		}
		return &AddrLocationSpec{Addr: addr}, nil
	}

	if line, err := strconv.Atoi(rest); err == nil {
		if line <= 0 {
			return nil, malformed("line numbers start at 1")
		}
		return &LineLocationSpec{Line: line}, nil
	}

	if i := strings.LastIndex(rest, ":"); i >= 0 {
		line, err := strconv.Atoi(rest[i+1:])
		if err != nil || line <= 0 || i == 0 {
			return nil, malformed("expected <function>:<line>")
		}
		return &LineLocationSpec{Func: rest[:i], Line: line}, nil
	}

	if strings.ContainsAny(rest, " \t") {
		return nil, malformed("unexpected whitespace")
	}
	return parseFuncLocationSpec(rest), nil
}

func parseFuncLocationSpec(in string) *FuncLocationSpec {
	i := strings.LastIndex(in, ".")
	if i <= 0 || i == len(in)-1 {
		return &FuncLocationSpec{BaseName: in}
	}
	return &FuncLocationSpec{PackageName: in[:i], BaseName: in[i+1:]}
}

func (loc *AddrLocationSpec) Find(syms SymbolTable) (uint64, error) {
	return loc.Addr, nil
}

func (loc *LineLocationSpec) Find(syms SymbolTable) (uint64, error) {
	addr, ok := syms.LineToPC(loc.Func, loc.Line)
	if !ok {
		name := strconv.Itoa(loc.Line)
		if loc.Func != "" {
			name = loc.Func + ":" + name
		}
		return 0, &UnresolvedSymbolError{Kind: LineSymbol, Name: name}
	}
	return addr, nil
}

func (loc *FuncLocationSpec) Find(syms SymbolTable) (uint64, error) {
	addr, ok := syms.FunctionToPC(loc.PackageName, loc.BaseName)
	if !ok {
		return 0, &UnresolvedSymbolError{Kind: FunctionSymbol, Name: loc.String()}
	}
	return addr, nil
}

func (loc *FuncLocationSpec) String() string {
	if loc.PackageName == "" {
		return loc.BaseName
	}
	return loc.PackageName + "." + loc.BaseName
}
