// Command refbind validates entity reference binding configuration and
// relays selection messages for one binding point.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/refbind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
