package main

import (
	"fmt"
	"os"
	"runtime"
)

var calls int

func init() {
	runtime.LockOSThread()
}

func foo(n int) int {
	calls++
	return n * 2
}

func main() {
	total := 0
	for i := 0; i < 2; i++ {
		total += foo(i)
	}
	fmt.Println("total", total)
	os.Exit(calls)
}
