package main

import (
	"fmt"
	"os"

	"github.com/arthur-debert/kitman/cmd/kitman/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, commands.FormatError(err))
		os.Exit(commands.ExitCode(err))
	}
}
