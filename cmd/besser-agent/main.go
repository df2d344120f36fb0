// Command besser-agent runs the example agents and talks to them.
//
// Usage:
//
//	besser-agent [flags] <command> [args]
//
// Commands:
//
//	run      - Train an example agent and serve it on a platform
//	chat     - Chat with an agent served on the WebSocket platform
//	monitor  - Print the monitoring database tables
//
// Properties are read from config.ini (or --config) and BESSER_* environment
// variables; a .env file next to the binary is loaded first.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
