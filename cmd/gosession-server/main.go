// Command gosession-server runs the session HTTP API and its operator
// commands.
package main

import "os"

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
