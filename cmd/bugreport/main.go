// Command bugreport builds fixture apps and checks bug report suites against
// them in headless Chrome.
package main

import (
	"fmt"
	"os"

	"github.com/thesyncim/bugreport/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
