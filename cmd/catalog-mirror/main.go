// Command catalog-mirror mirrors a mod catalog API into a local SQLite
// database and an optional content-addressed file bucket.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
