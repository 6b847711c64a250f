package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mosaicnetworks/ledgerpool/src/crypto/keys"
	"github.com/mosaicnetworks/ledgerpool/src/pool"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for ledgerpool
var RootCmd = &cobra.Command{
	Use:              "ledgerpool",
	Short:            "verifying client of a validator pool",
	TraverseChildren: true,
}

//AddPoolFlags adds the flags of the commands that open a pool
func AddPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.Pool.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Pool.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Pool.LogFile, "Also write logs, as JSON, to this file")
	cmd.Flags().String("pool", _config.Pool.PoolName, "Name of the pool, separating its persisted state")
	cmd.Flags().String("genesis", _config.Pool.GenesisFile, "Genesis pool ledger (default [datadir]/pool_transactions_genesis)")

	// Store
	cmd.Flags().String("store", _config.Pool.Store, "Credential store: badger, bolt, or inmem")
	cmd.Flags().String("db", _config.Pool.DatabaseDir, "Database directory")

	// Requests
	cmd.Flags().Int("fanout", _config.Pool.Fanout, "Nodes queried in the first round, 0 for the quorum size")
	cmd.Flags().Int("fanout-growth", _config.Pool.FanoutGrowth, "Extra nodes queried in later rounds")
	cmd.Flags().String("selector", _config.Pool.Selector, "Node order of requests: round-robin or random")
	cmd.Flags().Int("max-attempts", _config.Pool.MaxAttempts, "Max number of rounds per request")
	cmd.Flags().Duration("dispatch-timeout", _config.Pool.DispatchTimeout, "Timeout of a single node exchange")
	cmd.Flags().Duration("round-timeout", _config.Pool.RoundTimeout, "Time waited for replies in a round")
	cmd.Flags().Duration("max-staleness", _config.Pool.MaxStaleness, "Reject state attested longer ago, 0 for any age")
	cmd.Flags().Int("protocol-version", _config.Pool.ProtocolVersion, "Protocol version stamped on requests")
	cmd.Flags().Int("fault-divisor", _config.Pool.FaultDivisor, "Tolerated faults are (n-1)/divisor")

	// Catch-up
	cmd.Flags().Duration("catchup-timeout", _config.Pool.CatchupTimeout, "Timeout of a catch-up run")
	cmd.Flags().Int("catchup-batch", _config.Pool.CatchupBatch, "Max pool ledger entries fetched at once")

	// Network
	cmd.Flags().Int("max-pool", _config.Pool.MaxPool, "Connection pool size max")
	cmd.Flags().DurationP("timeout", "t", _config.Timeout, "Timeout of the command")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Pool.SetDataDir(_config.Pool.DataDir)

	// the key is optional, requests go unsigned without it
	if _, err := os.Stat(_config.Pool.Keyfile()); err == nil {
		key, err := keys.NewSimpleKeyfile(_config.Pool.Keyfile()).ReadKey()
		if err != nil {
			return fmt.Errorf("Reading private key: %s", err)
		}
		_config.Pool.Key = key
	}

	_config.Pool.Logger().WithFields(logrus.Fields{
		"DataDir":         _config.Pool.DataDir,
		"PoolName":        _config.Pool.PoolName,
		"Genesis":         _config.Pool.Genesis(),
		"Store":           _config.Pool.Store,
		"DatabaseDir":     _config.Pool.DatabaseDir,
		"LogLevel":        _config.Pool.LogLevel,
		"Fanout":          _config.Pool.Fanout,
		"Selector":        _config.Pool.Selector,
		"MaxAttempts":     _config.Pool.MaxAttempts,
		"DispatchTimeout": _config.Pool.DispatchTimeout,
		"RoundTimeout":    _config.Pool.RoundTimeout,
		"CatchupTimeout":  _config.Pool.CatchupTimeout,
		"MaxPool":         _config.Pool.MaxPool,
		"Signed":          _config.Pool.Key != nil,
	}).Debug("Config")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/ledgerpool.toml (.json, .yaml also work)
	viper.SetConfigName("ledgerpool")
	viper.AddConfigPath(_config.Pool.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Pool.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Pool.Logger().Debugf("No config file found in: %s", _config.Pool.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// openPool opens the configured pool, which catches up with the network.
func openPool() (*pool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), _config.Timeout)
	defer cancel()

	p, err := pool.Open(ctx, &_config.Pool)
	if err != nil {
		return nil, fmt.Errorf("Opening pool: %s", err)
	}
	return p, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
