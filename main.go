// The main package for the rqctl executable.
package main

import (
	cmd "github.com/brightcrawl/rqueue/cmd/rqctl"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
