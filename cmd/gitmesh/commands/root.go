package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for gitmesh
var RootCmd = &cobra.Command{
	Use:              "gitmesh",
	Short:            "peer-to-peer editing of git working trees",
	TraverseChildren: true,
}
