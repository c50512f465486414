// Command specsql compiles declarative JSON query specs into parameterized
// SQL SELECT statements and optionally runs them.
//
// Usage:
//
//	specsql [flags] <command>
//
// See `specsql --help` for the command list.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/specsql/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		if !cli.IsReported(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
