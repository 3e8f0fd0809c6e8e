// Package main is the entry point for the voicebridge server CLI.
//
// Usage:
//
//	voicebridge [flags] <command>
//
// Commands:
//
//	serve      - Run the carrier-facing bridge server
//	tools      - List the business actions offered to the model
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/veridian-labs/voicebridge/cmd/voicebridge/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
