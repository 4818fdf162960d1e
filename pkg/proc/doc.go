// Package proc is a low-level package that provides the building blocks
// used to control the process we are debugging.
//
// proc implements the backend independent parts of process control:
// * the breakpoint table and the trap byte install / restore sequence
// * resuming a process stopped at a breakpoint (the step-over protocol)
// * frame pointer based stack unwinding
// * memory access helpers and disassembly
//
// The operating system specific parts live in proc/native.
package proc
