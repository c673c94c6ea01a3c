package main

import (
	"os"

	cmd "github.com/mosaicnetworks/gitmesh/cmd/gitmesh/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.NewRunCmd(),
		cmd.NewBootstrapCmd(),
		cmd.NewVersionCmd(),
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
