// Command diphone-say speaks a phrase with a diphone library.
//
// Usage:
//
//	diphone-say [--diphones DIR] [--dict FILE] [-p] [-o FILE] [-c] [-v N] [-s] PHRASE...
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
