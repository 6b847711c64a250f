package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mosaicnetworks/ledgerpool/src/peers"
)

// NewGenesisCmd produces the genesis command and its subcommands.
func NewGenesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Genesis pool ledger tools",
	}

	verifyCmd := &cobra.Command{
		Use:     "verify [file]",
		Short:   "Check a genesis file and list its nodes",
		Args:    cobra.MaximumNArgs(1),
		PreRunE: loadConfig,
		RunE:    verifyGenesis,
	}
	AddPoolFlags(verifyCmd)

	cmd.AddCommand(verifyCmd)

	return cmd
}

func verifyGenesis(cmd *cobra.Command, args []string) error {
	path := _config.Pool.Genesis()
	if len(args) > 0 {
		path = args[0]
	}

	reg, err := peers.LoadGenesis(path)
	if err != nil {
		return err
	}

	if err := reg.Verify(); err != nil {
		return err
	}

	fmt.Printf("Genesis %s\n", path)
	fmt.Printf("seq: %d\nroot: %s\n", reg.Seq(), reg.RootHex())

	return printJSON(reg.Nodes())
}
