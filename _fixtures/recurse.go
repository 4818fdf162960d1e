package main

import (
	"fmt"
	"runtime"
)

func init() {
	runtime.LockOSThread()
}

func recurse(depth int) int {
	if depth == 0 {
		return 0
	}
	return recurse(depth-1) + 1
}

func main() {
	fmt.Println(recurse(5))
}
