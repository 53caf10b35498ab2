// ./main.go
package main

import (
	"github.com/nexus-desktop/nexus-agent/cmd"
)

// main is the entry point for the Nexus agent.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
