// Package main provides the entry point for the novelindex CLI.
package main

import (
	"os"

	"github.com/yomogi/novelindex/cmd/novelindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
