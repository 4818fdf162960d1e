package main

import (
	"os"

	"github.com/go-delve/deet/cmd/deet/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
