// Command lazycell races concurrent callers against a lazy cell and shows
// whether they all observed the same instance.
//
// Usage:
//
//	lazycell demo                     # FOO and BAR race for one cell
//	lazycell demo --cell unsafe A B C # same race against the unsynchronized cell
//	lazycell race --detect            # repeated trials with happens-before checking
//	lazycell version
package main

import (
	"fmt"
	"os"
)

func main() {
	err := rootCmd().Invoke().WithOS().Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
