// Package config defines the configuration of a ledgerpool client.
//
// Whether the client is opened from Go code or from the ledgerpool command,
// it reads its options from the Config object defined in this package. On top
// of these options, the client relies on a data directory, defined by
// Config.DataDir, where it expects to find a few files:
//
//  priv_key // a plain text file containing the client's raw private key (cf. ledgerpool keygen).
//  pool_transactions_genesis // line-delimited JSON pool ledger entries admitting the genesis nodes.
//  ledgerpool.toml // (optional) configuration file, any format supported by viper.
package config
