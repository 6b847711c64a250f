package main

import (
	"os"

	cmd "github.com/mosaicnetworks/ledgerpool/cmd/ledgerpool/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(
		cmd.VersionCmd,
		cmd.NewKeygenCmd(),
		cmd.NewGenesisCmd(),
		cmd.NewStatusCmd(),
		cmd.NewRefreshCmd(),
		cmd.NewSubmitCmd(),
		cmd.NewCacheCmd(),
		cmd.NewServeCmd(),
		cmd.NewSimCmd(),
	)

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
