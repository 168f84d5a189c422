// Command hagoth resolves queries against declared build rules by backward
// chaining, rebuilding out-of-date targets along the way.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hagoth/hagoth/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Subcommands silence cobra's own reporting, so exit errors are printed
	// here; flag and usage errors were already reported by cobra.
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
