package terminal

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/go-delve/deet/pkg/proc"
)

func disasmPrint(dv []proc.AsmInstruction, out io.Writer) {
	bw := bufio.NewWriter(out)
	defer bw.Flush()
	if len(dv) > 0 && dv[0].Loc.Fn != nil {
		fmt.Fprintf(bw, "TEXT %s(SB) %s\n", dv[0].Loc.Fn.Name, dv[0].Loc.File)
	}
	tw := tabwriter.NewWriter(bw, 1, 8, 1, '\t', 0)
	defer tw.Flush()
	for _, inst := range dv {
		atbp := ""
		if inst.Breakpoint {
			atbp = "*"
		}
		atpc := ""
		if inst.AtPC {
			atpc = "=>"
		}
		loc := "?"
		if inst.Loc.File != "" {
			loc = fmt.Sprintf("%s:%d", filepath.Base(inst.Loc.File), inst.Loc.Line)
		}
		fmt.Fprintf(tw, "%s\t%s\t%#x%s\t%x\t%s\n", atpc, loc, inst.Loc.PC, atbp, inst.Bytes, inst.Text)
	}
}
