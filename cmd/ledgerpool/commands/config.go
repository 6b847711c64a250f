package commands

import (
	"time"

	"github.com/mosaicnetworks/ledgerpool/src/config"
)

//CLIConfig contains the configuration of the pool commands
type CLIConfig struct {
	Pool config.Config `mapstructure:",squash"`

	// Timeout bounds a command's pool operations.
	Timeout time.Duration `mapstructure:"timeout"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Pool:    *config.NewDefaultConfig(),
		Timeout: 30 * time.Second,
	}
}
