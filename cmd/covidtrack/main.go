package main

import (
	"os"

	"github.com/epiwatch/covidtrack/cmd/covidtrack/commands"
)

// main is the entry point for the covidtrack CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
