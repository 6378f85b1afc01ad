// Command tutaexport exports a signed-in user's mail to local .eml
// files (spec.md §6 CLI surface).
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
