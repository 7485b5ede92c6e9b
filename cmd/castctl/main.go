// Command castctl is castkeep's operator CLI: ingest a recording,
// list detected sections, preview a section's snapshot, or run the
// directory watcher.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
