// Package main is the DGD console entry point: an interactive console for
// the administrative port of a DGD server, plus one-shot commands for
// scripts.
package main

import (
	"fmt"
	"os"
)

// Version of the console
const Version = "0.3.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
