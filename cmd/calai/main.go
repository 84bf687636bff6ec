// Command calai is the entry point for the calendar assistant.
// It provides a CLI interface (via Cobra) and an optional HTTP server that
// answers calendar and policy questions with cited, evaluated evidence.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/calai-go/cmd/calai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
