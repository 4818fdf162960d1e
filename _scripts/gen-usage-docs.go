//go:build ignore

package main

import (
	"log"
	"os"

	"github.com/go-delve/deet/cmd/deet/cmds"
)

const defaultUsageDir = "./Documentation/usage"

func main() {
	usageDir := defaultUsageDir
	if len(os.Args) > 1 {
		usageDir = os.Args[1]
	}
	if err := os.MkdirAll(usageDir, 0755); err != nil {
		log.Fatal(err)
	}
	if err := cmds.GenMarkdownTree(usageDir); err != nil {
		log.Fatal(err)
	}
}
