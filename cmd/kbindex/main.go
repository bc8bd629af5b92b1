// Package main provides the entry point for the kbindex CLI.
package main

import (
	"os"

	"github.com/kbindex/kbindex/cmd/kbindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
