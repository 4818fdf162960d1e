package logflags

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func reset() {
	debugger, proc, symbols = false, false, false
	Close()
}

func TestSetupWithoutLogFlag(t *testing.T) {
	defer reset()
	if err := Setup(false, "", ""); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if Debugger() || Proc() || Symbols() {
		t.Fatal("no layer should be enabled")
	}
	if err := Setup(false, "proc", ""); err != errLogstrWithoutLog {
		t.Fatalf("expected %v, got %v", errLogstrWithoutLog, err)
	}
}

func TestSetupDefaultLayer(t *testing.T) {
	defer reset()
	if err := Setup(true, "", ""); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if !Debugger() {
		t.Fatal("debugger layer should be enabled by default")
	}
	if Proc() || Symbols() {
		t.Fatal("only the debugger layer should be enabled")
	}
}

func TestSetupLayers(t *testing.T) {
	defer reset()
	if err := Setup(true, "proc,symbols", ""); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if Debugger() || !Proc() || !Symbols() {
		t.Fatalf("unexpected layers: debugger=%v proc=%v symbols=%v", Debugger(), Proc(), Symbols())
	}
	if lvl := ProcLogger().Logger.Level; lvl != logrus.DebugLevel {
		t.Fatalf("expected debug level for enabled layer, got %v", lvl)
	}
	if lvl := DebuggerLogger().Logger.Level; lvl != logrus.ErrorLevel {
		t.Fatalf("expected error level for disabled layer, got %v", lvl)
	}
}

func TestSetupLogDest(t *testing.T) {
	defer reset()
	dest := filepath.Join(t.TempDir(), "deet.log")
	if err := Setup(true, "symbols", dest); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	SymbolsLogger().Debugf("loaded %d functions", 3)
	Close()
	buf, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(buf), "loaded 3 functions") || !strings.Contains(string(buf), "layer=symbols") {
		t.Fatalf("unexpected log contents: %q", buf)
	}
}
