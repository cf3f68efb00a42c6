// Command sqlconform checks which advanced SQL features an embedded engine
// supports by running query cases against a fixture.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sqlconform/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil && !cli.IsReported(err) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
