// Command mavenidx maintains and publishes a Maven repository index.
package main

import (
	"os"

	"github.com/mavenidx/mavenidx/cmd/mavenidx/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
