package main

import (
	"runtime"
	"syscall"
	"time"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	syscall.Kill(syscall.Getpid(), syscall.SIGTERM)
	for {
		time.Sleep(time.Second)
	}
}
