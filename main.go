// The main package for the moviemeter executable.
package main

import (
	"github.com/JakeFAU/moviemeter-scraper/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
