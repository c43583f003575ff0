// Command pointex runs the era-based point to token exchange.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pointex/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
