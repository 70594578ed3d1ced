// Command memex is the CLI entry point for the local semantic memory engine.
package main

import (
	"fmt"
	"os"

	"github.com/rshah/memex/cmd/memex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
