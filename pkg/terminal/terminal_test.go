package terminal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-delve/deet/pkg/proc"
	"github.com/go-delve/deet/pkg/symbols"
)

func TestFormatPath(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	var term Term
	for _, tc := range []struct{ in, out string }{
		{filepath.Join(wd, "a.go"), "." + string(filepath.Separator) + "a.go"},
		{filepath.Join(wd, "sub", "b.go"), "." + string(filepath.Separator) + filepath.Join("sub", "b.go")},
		{filepath.Join(filepath.Dir(wd), "c.go"), filepath.Join(filepath.Dir(wd), "c.go")},
		{"", "?"},
	} {
		if got := term.formatPath(tc.in); got != tc.out {
			t.Errorf("formatPath(%q) = %q, expected %q", tc.in, got, tc.out)
		}
	}
}

func TestHighlight(t *testing.T) {
	var out bytes.Buffer
	term := Term{stdout: &out}
	term.Println("> ", "main.main()")
	if out.String() != "> main.main()\n" {
		t.Fatalf("unexpected output without colors %q", out.String())
	}
	out.Reset()
	term.colors = true
	term.Println("> ", "main.main()")
	if out.String() != "\033[34m> \033[0mmain.main()\n" {
		t.Fatalf("unexpected output with colors %q", out.String())
	}
}

func TestPrintStack(t *testing.T) {
	var out bytes.Buffer
	term := Term{stdout: &out}
	printStack(&term, nil)
	if out.Len() != 0 {
		t.Fatalf("output for an empty stack: %q", out.String())
	}

	fn := &symbols.Function{Name: "main.f"}
	stack := make([]proc.Stackframe, 11)
	for i := range stack {
		stack[i].Current = proc.Location{PC: uint64(0x1000 + i), File: "/x.go", Line: i + 1, Fn: fn}
	}
	stack[10].Current = proc.Location{PC: 0x2000}
	printStack(&term, stack)
	lines := bytes.Split(bytes.TrimSuffix(out.Bytes(), []byte("\n")), []byte("\n"))
	if len(lines) != 21 {
		t.Fatalf("expected 21 lines, got %d:\n%s", len(lines), out.String())
	}
	if string(lines[0]) != " 0  0x0000000000001000 in main.f" || string(lines[1]) != "    at /x.go:1" {
		t.Errorf("unexpected first frame %q %q", lines[0], lines[1])
	}
	if string(lines[20]) != "10  0x0000000000002000 in ?" {
		t.Errorf("unexpected unresolved frame %q", lines[20])
	}
}
