//go:build linux && amd64

package main

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	protest "github.com/go-delve/deet/pkg/proc/test"
)

func TestMain(m *testing.M) {
	os.Exit(protest.RunTestsWithFixtures(m))
}

func assertNoError(err error, t testing.TB, s string) {
	t.Helper()
	if err != nil {
		_, file, line, _ := runtime.Caller(1)
		fname := filepath.Base(file)
		t.Fatalf("failed assertion at %s:%d: %s - %s\n", fname, line, s, err)
	}
}

func buildDeet(t *testing.T) string {
	deetbin := filepath.Join(t.TempDir(), "deet")
	cmd := exec.Command("go", "build", "-o", deetbin, "github.com/go-delve/deet/cmd/deet")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("go build: %v\n%s", err, out)
	}
	return deetbin
}

func TestScriptedSession(t *testing.T) {
	protest.MustSupportNative(t)
	deetbin := buildDeet(t)
	fixture := protest.BuildFixture(t, "testprog")

	cmd := exec.Command(deetbin, fixture.Path)
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir(), "TERM=dumb")
	cmd.Stdin = strings.NewReader("break main.foo\nrun\ncontinue\n\n\nexit\n")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	assertNoError(cmd.Run(), t, "deet")

	for _, want := range []string{
		"Breakpoint 1 set at ",
		"> [Breakpoint 1] main.foo() ",
		"total 2",
		"has exited with status 2",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output does not contain %q:\n%s", want, out.String())
		}
	}
}

func TestInitFile(t *testing.T) {
	protest.MustSupportNative(t)
	deetbin := buildDeet(t)
	fixture := protest.BuildFixture(t, "testprog")

	cmd := exec.Command(deetbin, "--init", filepath.Join(protest.FindFixturesDir(), "bpfile"), fixture.Path)
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir(), "TERM=dumb")
	cmd.Stdin = strings.NewReader("breakpoints\nexit\n")
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	assertNoError(cmd.Run(), t, "deet")

	if !strings.Contains(out.String(), "Breakpoint 1 at ") || !strings.Contains(out.String(), "Breakpoint 2 at ") {
		t.Errorf("breakpoints from the init file missing:\n%s", out.String())
	}
}
