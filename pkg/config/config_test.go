package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("aliases:\n"))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.EntryFunctions) != 2 || c.EntryFunctions[0] != "main" || c.EntryFunctions[1] != "main.main" {
		t.Fatalf("unexpected entry functions %v", c.EntryFunctions)
	}
	if c.MaxStackDepth != defaultStackSize || c.DisassembleCount != defaultDisassLen {
		t.Fatalf("unexpected defaults %d %d", c.MaxStackDepth, c.DisassembleCount)
	}
	if c.SymbolCacheSize == nil || *c.SymbolCacheSize != defaultCacheSize {
		t.Fatalf("unexpected cache size %v", c.SymbolCacheSize)
	}
}

func TestParseValues(t *testing.T) {
	data := `
aliases:
  backtrace: ["where"]
entry-functions: ["_start"]
max-stack-depth: 16
symbol-cache-size: 0
`
	c, err := Parse([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Aliases["backtrace"]; len(got) != 1 || got[0] != "where" {
		t.Fatalf("unexpected aliases %v", c.Aliases)
	}
	if len(c.EntryFunctions) != 1 || c.EntryFunctions[0] != "_start" {
		t.Fatalf("unexpected entry functions %v", c.EntryFunctions)
	}
	if c.MaxStackDepth != 16 {
		t.Fatalf("unexpected max stack depth %d", c.MaxStackDepth)
	}
	if *c.SymbolCacheSize != 0 {
		t.Fatalf("explicit zero cache size was overridden: %d", *c.SymbolCacheSize)
	}
}

func TestParseError(t *testing.T) {
	c, err := Parse([]byte("aliases: [unterminated"))
	if err == nil {
		t.Fatal("expected decode error")
	}
	if c == nil || c.MaxStackDepth != defaultStackSize {
		t.Fatal("a usable default config should be returned on error")
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	c, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if c.DisassembleCount != defaultDisassLen {
		t.Fatalf("unexpected disassemble count %d", c.DisassembleCount)
	}
	if _, err := os.Stat(filepath.Join(dir, configDir, configFile)); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
}
