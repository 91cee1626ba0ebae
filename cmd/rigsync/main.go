package main

import (
	"fmt"
	"os"

	"github.com/ephyslab/rigsync/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "rigsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
