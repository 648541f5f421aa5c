// Package main is the entry point for the docverify CLI, the terminal
// tool for interacting with the docverify daemon API.
package main

import (
	"os"

	"docverify/cmd/docverify/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
