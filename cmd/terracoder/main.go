// Command terracoder is the entry point for the Terraform code generation
// service. It provides a CLI interface (via Cobra) for one-shot generation
// and an HTTP server exposing the generation API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/terracoder/cmd/terracoder/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
