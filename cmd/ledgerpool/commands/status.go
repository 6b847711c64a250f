package commands

import (
	"github.com/spf13/cobra"
)

// NewStatusCmd produces the command that prints the stats of a pool, after
// bringing it up to date.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		Short:   "Show the registry and catch-up state of the pool",
		PreRunE: loadConfig,
		RunE:    status,
	}
	AddPoolFlags(cmd)
	return cmd
}

func status(cmd *cobra.Command, args []string) error {
	p, err := openPool()
	if err != nil {
		return err
	}
	defer p.Close()

	return printJSON(p.GetStats())
}

// NewRefreshCmd produces the command that catches up with the network and
// prints the resulting registry.
func NewRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "refresh",
		Short:   "Catch up with the pool ledger and list the nodes",
		PreRunE: loadConfig,
		RunE:    refresh,
	}
	AddPoolFlags(cmd)
	return cmd
}

func refresh(cmd *cobra.Command, args []string) error {
	p, err := openPool()
	if err != nil {
		return err
	}
	defer p.Close()

	reg := p.Registry()
	_config.Pool.Logger().WithField("seq", reg.Seq()).WithField("root", reg.RootHex()).Info("Registry up to date")

	return printJSON(p.Nodes())
}
