// Package main provides the TOC extractor CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/lexatlas/toc-extractor/cmd/toc-extractor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
