// Package symbols translates between code addresses and functions or
// source lines using the DWARF debug information of the target binary.
package symbols

import (
	"debug/dwarf"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/go-delve/deet/pkg/logflags"
)

// ErrNoDebugInfo is returned by Load when the executable has no DWARF sections.
var ErrNoDebugInfo = errors.New("could not find debug info in executable (was it built with -g?)")

// Function is a function of the target program.
type Function struct {
	Name  string
	Entry uint64
	End   uint64
}

// Line is a source position.
type Line struct {
	File string
	Line int
	PC   uint64
}

func (l Line) String() string {
	return fmt.Sprintf("%s:%d", filepath.Base(l.File), l.Line)
}

type lineEntry struct {
	pc     uint64
	file   string
	line   int
	isStmt bool
	end    bool
}

type pcInfo struct {
	fn   *Function
	line *Line
}

// Options configures a Table.
type Options struct {
	// EntryFunctions are candidate names for the program entry function.
	// The file containing the first one found is the default file for
	// line lookups.
	EntryFunctions []string
	// CacheSize is the number of PC lookups to remember, zero disables
	// caching.
	CacheSize int
}

// Table is a symbol table built once from the target binary.
type Table struct {
	functions []Function
	byName    map[string]int
	lines     []lineEntry
	mainFile  string

	cache *lru.Cache
	log   *logrus.Entry
}

// Load reads the DWARF sections of the ELF executable at path.
func Load(path string, opts Options) (*Table, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()
	d, err := f.DWARF()
	if err != nil {
		if f.Section(".debug_info") == nil {
			return nil, ErrNoDebugInfo
		}
		return nil, fmt.Errorf("could not read debug info from %s: %w", path, err)
	}
	fns, lines, err := readDwarf(d)
	if err != nil {
		return nil, err
	}
	t := newTable(fns, lines, opts)
	if logflags.Symbols() {
		t.log.Debugf("loaded %d functions and %d line entries from %s", len(t.functions), len(t.lines), path)
	}
	return t, nil
}

func readDwarf(d *dwarf.Data) ([]Function, []lineEntry, error) {
	var fns []Function
	var lines []lineEntry
	rdr := d.Reader()
	for {
		e, err := rdr.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("could not read debug info: %w", err)
		}
		if e == nil {
			break
		}
		switch e.Tag {
		case dwarf.TagCompileUnit:
			lr, err := d.LineReader(e)
			if err != nil {
				logflags.SymbolsLogger().Errorf("could not read line table: %v", err)
				continue
			}
			if lr == nil {
				continue
			}
			var le dwarf.LineEntry
			for {
				if err := lr.Next(&le); err != nil {
					if err != io.EOF {
						logflags.SymbolsLogger().Errorf("error reading line table: %v", err)
					}
					break
				}
				file := ""
				if le.File != nil {
					file = le.File.Name
				}
				lines = append(lines, lineEntry{pc: le.Address, file: file, line: le.Line, isStmt: le.IsStmt, end: le.EndSequence})
			}
		case dwarf.TagSubprogram:
			name, _ := e.Val(dwarf.AttrName).(string)
			if name == "" {
				continue
			}
			ranges, err := d.Ranges(e)
			if err != nil || len(ranges) == 0 {
				continue
			}
			fn := Function{Name: name, Entry: ranges[0][0], End: ranges[0][1]}
			for _, rng := range ranges[1:] {
				if rng[1] > fn.End {
					fn.End = rng[1]
				}
			}
			fns = append(fns, fn)
		}
	}
	return fns, lines, nil
}

func newTable(fns []Function, lines []lineEntry, opts Options) *Table {
	sort.Slice(fns, func(i, j int) bool { return fns[i].Entry < fns[j].Entry })
	// End-of-sequence markers sort before rows starting a new sequence at
	// the same address.
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].pc != lines[j].pc {
			return lines[i].pc < lines[j].pc
		}
		return lines[i].end && !lines[j].end
	})
	t := &Table{
		functions: fns,
		byName:    make(map[string]int, len(fns)),
		lines:     lines,
		log:       logflags.SymbolsLogger(),
	}
	for i := range fns {
		if _, dup := t.byName[fns[i].Name]; !dup {
			t.byName[fns[i].Name] = i
		}
	}
	if opts.CacheSize > 0 {
		t.cache, _ = lru.New(opts.CacheSize)
	}
	for _, name := range opts.EntryFunctions {
		if i, ok := t.byName[name]; ok {
			if l, ok := t.lineForPC(t.functions[i].Entry); ok {
				t.mainFile = l.File
				break
			}
		}
	}
	return t
}

// Functions returns all functions sorted by entry point.
func (t *Table) Functions() []Function {
	return t.functions
}

// FunctionForPC returns the function containing pc.
func (t *Table) FunctionForPC(pc uint64) (*Function, bool) {
	info := t.lookup(pc)
	return info.fn, info.fn != nil
}

// LineForPC returns the source line of the instruction at pc.
func (t *Table) LineForPC(pc uint64) (*Line, bool) {
	info := t.lookup(pc)
	return info.line, info.line != nil
}

func (t *Table) lookup(pc uint64) pcInfo {
	if t.cache != nil {
		if v, ok := t.cache.Get(pc); ok {
			return v.(pcInfo)
		}
	}
	var info pcInfo
	info.fn = t.functionForPC(pc)
	if l, ok := t.lineForPC(pc); ok {
		info.line = &l
	}
	if t.cache != nil {
		t.cache.Add(pc, info)
	}
	return info
}

func (t *Table) functionForPC(pc uint64) *Function {
	i := sort.Search(len(t.functions), func(i int) bool {
		return t.functions[i].Entry > pc
	}) - 1
	if i >= 0 {
		fn := &t.functions[i]
		if fn.Entry <= pc && pc < fn.End {
			return fn
		}
	}
	return nil
}

func (t *Table) lineForPC(pc uint64) (Line, bool) {
	i := sort.Search(len(t.lines), func(i int) bool {
		return t.lines[i].pc > pc
	}) - 1
	if i < 0 || t.lines[i].end {
		return Line{}, false
	}
	le := t.lines[i]
	return Line{File: le.file, Line: le.line, PC: le.pc}, true
}

// LineToPC returns the lowest statement address for line. If fn is not
// empty the search is limited to the body of that function and its file,
// otherwise to the file that contains the entry function.
func (t *Table) LineToPC(fn string, line int) (uint64, bool) {
	file := t.mainFile
	lo, hi := uint64(0), ^uint64(0)
	if fn != "" {
		f := t.findFunction(fn)
		if f == nil {
			return 0, false
		}
		lo, hi = f.Entry, f.End
		l, ok := t.lineForPC(f.Entry)
		if !ok {
			return 0, false
		}
		file = l.File
	}
	for _, le := range t.lines {
		if le.end || !le.isStmt || le.line != line || le.pc < lo || le.pc >= hi {
			continue
		}
		if file != "" && le.file != file {
			continue
		}
		// lines are sorted by address so the first match is the lowest
		return le.pc, true
	}
	return 0, false
}

// FunctionToPC returns the entry point of the function called name. A
// non-empty fn qualifies name, so FunctionToPC("main", "foo") looks up
// main.foo. Unqualified names that do not match exactly are matched
// against the last component of package qualified names, preferring
// package main.
func (t *Table) FunctionToPC(fn, name string) (uint64, bool) {
	if fn != "" {
		name = fn + "." + name
	}
	f := t.findFunction(name)
	if f == nil {
		return 0, false
	}
	return f.Entry, true
}

func (t *Table) findFunction(name string) *Function {
	if i, ok := t.byName[name]; ok {
		return &t.functions[i]
	}
	if i, ok := t.byName["main."+name]; ok {
		return &t.functions[i]
	}
	suffix := "." + name
	for i := range t.functions {
		if strings.HasSuffix(t.functions[i].Name, suffix) {
			return &t.functions[i]
		}
	}
	return nil
}
