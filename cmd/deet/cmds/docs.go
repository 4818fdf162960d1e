package cmds

import (
	"github.com/spf13/cobra/doc"
)

// GenMarkdownTree writes the usage documentation of every deet command to
// dir, one markdown file per command.
func GenMarkdownTree(dir string) error {
	root := New()
	root.DisableAutoGenTag = true
	return doc.GenMarkdownTree(root, dir)
}
