package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/mosaicnetworks/ledgerpool/src/common"
	"github.com/mosaicnetworks/ledgerpool/src/net"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the client's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultGenesisFile is the default name of the genesis pool ledger file
	DefaultGenesisFile = "pool_transactions_genesis"

	// DefaultDatabaseFile is the default name of the database folder, or file
	// for the bolt store
	DefaultDatabaseFile = "pool_db"
)

// Default configuration values.
const (
	DefaultLogLevel        = "info"
	DefaultPoolName        = "default"
	DefaultServiceAddr     = "127.0.0.1:8000"
	DefaultStore           = "badger"
	DefaultFanout          = 2
	DefaultFanoutGrowth    = 1
	DefaultMaxAttempts     = 3
	DefaultDispatchTimeout = 2 * time.Second
	DefaultRoundTimeout    = 5 * time.Second
	DefaultCatchupTimeout  = 20 * time.Second
	DefaultMaxPool         = 2
	DefaultProtocolVersion = 2
	DefaultMaxStaleness    = 0
	DefaultFaultDivisor    = 3
	DefaultCatchupBatch    = 100
	DefaultSelector        = "round-robin"
)

// Config contains all the configuration properties of a pool client.
type Config struct {
	// DataDir is the top-level directory containing the client's
	// configuration and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, when set, receives a copy of the log output.
	LogFile string `mapstructure:"log-file"`

	// PoolName separates the persisted state of different pools sharing a
	// database.
	PoolName string `mapstructure:"pool"`

	// GenesisFile is the path of the genesis pool ledger. Defaults to
	// [datadir]/pool_transactions_genesis.
	GenesisFile string `mapstructure:"genesis"`

	// Store selects the credential store: badger, bolt, or inmem.
	Store string `mapstructure:"store"`

	// DatabaseDir is the location of the database.
	DatabaseDir string `mapstructure:"db"`

	// Fanout is the number of nodes a request is first sent to. Zero sends
	// it to exactly as many nodes as the quorum requires.
	Fanout int `mapstructure:"fanout"`

	// FanoutGrowth is the number of extra nodes queried in each later
	// round, on top of the replies still missing for a quorum.
	FanoutGrowth int `mapstructure:"fanout-growth"`

	// MaxAttempts is the number of rounds before a request gives up.
	MaxAttempts int `mapstructure:"max-attempts"`

	// DispatchTimeout bounds the exchange with a single node.
	DispatchTimeout time.Duration `mapstructure:"dispatch-timeout"`

	// RoundTimeout bounds the time waited for replies in one round.
	RoundTimeout time.Duration `mapstructure:"round-timeout"`

	// CatchupTimeout bounds a catch-up run.
	CatchupTimeout time.Duration `mapstructure:"catchup-timeout"`

	// CatchupBatch is the max number of pool ledger entries asked for at
	// once.
	CatchupBatch int `mapstructure:"catchup-batch"`

	// MaxPool controls how many connections are pooled per node.
	MaxPool int `mapstructure:"max-pool"`

	// ProtocolVersion is stamped on every request.
	ProtocolVersion int `mapstructure:"protocol-version"`

	// MaxStaleness rejects read replies whose state was attested longer ago.
	// Zero accepts any age.
	MaxStaleness time.Duration `mapstructure:"max-staleness"`

	// FaultDivisor sets the tolerated faults to (n-1)/FaultDivisor.
	FaultDivisor int `mapstructure:"fault-divisor"`

	// Selector orders the nodes a request is sent to: round-robin, or
	// random.
	Selector string `mapstructure:"selector"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Transport overrides the TCP client transport, mostly for tests.
	Transport net.Transport `mapstructure:"-"`

	// Key is the private key of the client. Requests are signed with it when
	// set.
	Key *ecdsa.PrivateKey `mapstructure:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:         DefaultDataDir(),
		LogLevel:        DefaultLogLevel,
		PoolName:        DefaultPoolName,
		Store:           DefaultStore,
		DatabaseDir:     DefaultDatabaseDir(),
		Fanout:          DefaultFanout,
		FanoutGrowth:    DefaultFanoutGrowth,
		MaxAttempts:     DefaultMaxAttempts,
		DispatchTimeout: DefaultDispatchTimeout,
		RoundTimeout:    DefaultRoundTimeout,
		CatchupTimeout:  DefaultCatchupTimeout,
		CatchupBatch:    DefaultCatchupBatch,
		MaxPool:         DefaultMaxPool,
		ProtocolVersion: DefaultProtocolVersion,
		MaxStaleness:    DefaultMaxStaleness,
		FaultDivisor:    DefaultFaultDivisor,
		Selector:        DefaultSelector,
		ServiceAddr:     DefaultServiceAddr,
	}

	return config
}

// NewTestConfig returns a config object with an in-memory store, short
// timeouts, and a logger writing to the test output.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.Store = "inmem"
	config.DataDir = ""
	config.DatabaseDir = ""
	config.DispatchTimeout = 500 * time.Millisecond
	config.RoundTimeout = time.Second
	config.CatchupTimeout = 5 * time.Second
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level directory, and updates the database directory
// if it is currently set to the default value.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultDatabaseFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// Genesis returns the path of the genesis file.
func (c *Config) Genesis() string {
	if c.GenesisFile != "" {
		return c.GenesisFile
	}
	return filepath.Join(c.DataDir, DefaultGenesisFile)
}

// DatabasePath returns the location handed to the store. bbolt keeps its data
// in a single file inside DatabaseDir.
func (c *Config) DatabasePath() string {
	if c.Store == "bolt" {
		return filepath.Join(c.DatabaseDir, "pool.db")
	}
	return c.DatabaseDir
}

// Logger returns a formatted logrus Entry, with prefix set to "ledgerpool".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogFile != "" {
			c.logger.Hooks.Add(lfshook.NewHook(
				c.LogFile,
				&logrus.JSONFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "ledgerpool")
}

// DefaultDatabaseDir returns the default path for the database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultDatabaseFile)
}

// DefaultDataDir return the default directory name for top-level ledgerpool
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Ledgerpool")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Ledgerpool")
		} else {
			return filepath.Join(home, ".ledgerpool")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
