package commands

import (
	"github.com/mosaicnetworks/gitmesh/src/gitmesh"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a gitmesh node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runGitmesh,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runGitmesh(cmd *cobra.Command, args []string) error {
	engine := gitmesh.NewGitmesh(&_config.Gitmesh)

	if err := engine.Init(); err != nil {
		_config.Gitmesh.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Gitmesh.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Gitmesh.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-dir", _config.Gitmesh.LogDir, "Directory of per-level log files")
	cmd.Flags().String("moniker", _config.Gitmesh.Moniker, "Optional name")

	// Editing
	cmd.Flags().StringP("workspace", "w", _config.Gitmesh.Workspace, "Path inside the git repository to edit")
	cmd.Flags().Uint32("site-id", _config.Gitmesh.SiteID, "Site id of this node, random when 0")
	cmd.Flags().Duration("save-delay", _config.Gitmesh.SaveDelay, "Debounce of document persistence")
	cmd.Flags().Int("stale-limit", _config.Gitmesh.StaleLimit, "Number of stale documents kept in memory")
	cmd.Flags().Int("echo-limit", _config.Gitmesh.EchoLimit, "Max pending buffer echoes per file")
	cmd.Flags().Duration("git-timeout", _config.Gitmesh.GitTimeout, "Timeout of git commands")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Gitmesh.BindAddr, "Listen IP:Port for gitmesh node")
	cmd.Flags().StringP("advertise", "a", _config.Gitmesh.AdvertiseAddr, "Advertise IP:Port for gitmesh node")
	cmd.Flags().StringP("bootstrap", "b", _config.Gitmesh.BootstrapAddr, "IP:Port of the bootstrap server")
	cmd.Flags().DurationP("timeout", "t", _config.Gitmesh.TCPTimeout, "TCP Timeout")
	cmd.Flags().Duration("resync-interval", _config.Gitmesh.ResyncInterval, "Min time between two requests for the operations of the peers")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Gitmesh.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Gitmesh.NoService, "Disable HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Gitmesh.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.Gitmesh.DatabaseDir, "Dabatabase directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Gitmesh.SetDataDir(_config.Gitmesh.DataDir)

	logFields := logrus.Fields{
		"gitmesh.DataDir":        _config.Gitmesh.DataDir,
		"gitmesh.LogLevel":       _config.Gitmesh.LogLevel,
		"gitmesh.LogDir":         _config.Gitmesh.LogDir,
		"gitmesh.Moniker":        _config.Gitmesh.Moniker,
		"gitmesh.Workspace":      _config.Gitmesh.Workspace,
		"gitmesh.SiteID":         _config.Gitmesh.SiteID,
		"gitmesh.BindAddr":       _config.Gitmesh.BindAddr,
		"gitmesh.AdvertiseAddr":  _config.Gitmesh.AdvertiseAddr,
		"gitmesh.BootstrapAddr":  _config.Gitmesh.BootstrapAddr,
		"gitmesh.ServiceAddr":    _config.Gitmesh.ServiceAddr,
		"gitmesh.NoService":      _config.Gitmesh.NoService,
		"gitmesh.TCPTimeout":     _config.Gitmesh.TCPTimeout,
		"gitmesh.GitTimeout":     _config.Gitmesh.GitTimeout,
		"gitmesh.SaveDelay":      _config.Gitmesh.SaveDelay,
		"gitmesh.ResyncInterval": _config.Gitmesh.ResyncInterval,
		"gitmesh.StaleLimit":     _config.Gitmesh.StaleLimit,
		"gitmesh.EchoLimit":      _config.Gitmesh.EchoLimit,
		"gitmesh.Store":          _config.Gitmesh.Store,
	}

	if _config.Gitmesh.Store {
		logFields["gitmesh.DatabaseDir"] = _config.Gitmesh.DatabaseDir
	}

	_config.Gitmesh.Logger().WithFields(logFields).Debug("RUN")

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

	// look for config file in [datadir]/gitmesh.toml (.json, .yaml also work)
	viper.SetConfigName("gitmesh")               // name of config file (without extension)
	viper.AddConfigPath(_config.Gitmesh.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Gitmesh.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Gitmesh.Logger().Debugf("No config file found in: %s", _config.Gitmesh.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
