package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mosaicnetworks/ledgerpool/src/service"
)

// NewServeCmd produces the command that keeps a pool open behind the HTTP
// service.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Serve the pool stats, nodes, reads, and metrics over HTTP",
		PreRunE: loadConfig,
		RunE:    serve,
	}
	AddPoolFlags(cmd)
	cmd.Flags().StringP("service-listen", "s", _config.Pool.ServiceAddr, "Listen IP:Port for HTTP service")
	return cmd
}

func serve(cmd *cobra.Command, args []string) error {
	p, err := openPool()
	if err != nil {
		return err
	}
	defer p.Close()

	logger := _config.Pool.Logger()

	s := service.NewService(_config.Pool.ServiceAddr, p, _config.Timeout, logger)
	go s.Serve()

	waitSignal()

	logger.Info("Shutting down")
	return nil
}

func waitSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
