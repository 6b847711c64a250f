package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mosaicnetworks/ledgerpool/src/peers"
	"github.com/mosaicnetworks/ledgerpool/src/validator"
)

var (
	simSize     int
	simHost     string
	simBasePort int
	simPuts     []string
	simFaulty   []string
)

// NewSimCmd produces the command that runs a simulated validator pool over
// TCP, and writes its genesis where the other commands look for it.
func NewSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sim",
		Short:   "Run a simulated validator pool",
		PreRunE: loadConfig,
		RunE:    sim,
	}
	AddPoolFlags(cmd)
	cmd.Flags().IntVarP(&simSize, "size", "n", 4, "Number of validators")
	cmd.Flags().StringVar(&simHost, "host", "127.0.0.1", "Host the validators listen on")
	cmd.Flags().IntVar(&simBasePort, "base-port", 9701, "Port of the first validator, the others follow")
	cmd.Flags().StringSliceVar(&simPuts, "put", nil, "key=json values written before serving")
	cmd.Flags().StringSliceVar(&simFaulty, "faulty", nil, "alias=behavior, with behavior one of silent, badsig, tamper, wrong, unattested")
	return cmd
}

var behaviors = map[string]validator.Behavior{
	"honest":     validator.Honest,
	"silent":     validator.Silent,
	"badsig":     validator.BadSignature,
	"tamper":     validator.TamperProof,
	"wrong":      validator.WrongResult,
	"unattested": validator.Unattested,
}

func sim(cmd *cobra.Command, args []string) error {
	logger := _config.Pool.Logger()

	next := simBasePort
	nw, err := validator.NewNetwork(validator.Config{
		Size: simSize,
		Addr: func(alias string) string {
			addr := fmt.Sprintf("%s:%d", simHost, next)
			next++
			return addr
		},
		Logger: logger.WithField("component", "sim"),
	})
	if err != nil {
		return err
	}

	for _, put := range simPuts {
		kv := strings.SplitN(put, "=", 2)
		if len(kv) != 2 {
			return fmt.Errorf("--put %q is not key=json", put)
		}
		var value interface{}
		if err := json.Unmarshal([]byte(kv[1]), &value); err != nil {
			return fmt.Errorf("--put %q: %s", put, err)
		}
		if err := nw.Put(kv[0], value); err != nil {
			return err
		}
	}

	for _, f := range simFaulty {
		kv := strings.SplitN(f, "=", 2)
		b, ok := behaviors[kv[len(kv)-1]]
		if len(kv) != 2 || !ok || nw.Node(kv[0]) == nil {
			return fmt.Errorf("--faulty %q is not alias=behavior", f)
		}
		nw.Node(kv[0]).SetBehavior(b)
	}

	genesis := _config.Pool.Genesis()
	if err := writeGenesisFile(genesis, nw.Genesis(simSize)); err != nil {
		return err
	}

	if err := nw.ServeTCP(_config.Pool.MaxPool, _config.Pool.DispatchTimeout); err != nil {
		return err
	}
	defer nw.Close()

	fields := logrus.Fields{
		"genesis":    genesis,
		"ledger_seq": nw.LedgerSeq(),
		"root":       nw.Registry().RootHex(),
	}
	for _, n := range nw.Nodes() {
		fields[n.Alias] = n.Addr
	}
	logger.WithFields(fields).Info("Validators serving")

	waitSignal()

	logger.Info("Shutting down")
	return nil
}

func writeGenesisFile(path string, txns []peers.PoolTxn) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return peers.WriteGenesis(f, txns)
}
