// Package main is the modekeeper binary.
//
// The same binary runs a node (modekeeper run) and administers a running
// cluster over its HTTP API (status, mode, nodes).
package main

import (
	"os"

	"github.com/yaroslav/modekeeper/cmd/modekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
