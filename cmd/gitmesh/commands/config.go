package commands

import (
	"github.com/mosaicnetworks/gitmesh/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Gitmesh config.Config `mapstructure:",squash"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Gitmesh: *config.NewDefaultConfig(),
	}
}
