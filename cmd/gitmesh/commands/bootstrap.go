package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/gitmesh/src/config"
	"github.com/mosaicnetworks/gitmesh/src/gitmesh"
	"github.com/spf13/cobra"
)

var bootstrapAddr = config.DefaultBootstrapAddr

//NewBootstrapCmd returns the command that runs a rendezvous server
func NewBootstrapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bootstrap",
		Short:   "Run a bootstrap server introducing peers to each other",
		PreRunE: loadBootstrapConfig,
		RunE:    runBootstrap,
	}
	AddBootstrapFlags(cmd)
	return cmd
}

//AddBootstrapFlags adds flags to the bootstrap command
func AddBootstrapFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&bootstrapAddr, "listen", "l", bootstrapAddr, "Listen IP:Port for the bootstrap server")
	cmd.Flags().String("datadir", _config.Gitmesh.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Gitmesh.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-dir", _config.Gitmesh.LogDir, "Directory of per-level log files")
	cmd.Flags().DurationP("timeout", "t", _config.Gitmesh.TCPTimeout, "TCP Timeout")
	cmd.Flags().Bool("bootstrap-store", _config.Gitmesh.BootstrapStore, "Keep the known peers in [datadir]/peers.json")
}

func loadBootstrapConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	_config.Gitmesh.Logger().WithField("listen", bootstrapAddr).Debug("BOOTSTRAP")

	return nil
}

// runBootstrap starts the server and waits for a SIGINT or SIGTERM
func runBootstrap(cmd *cobra.Command, args []string) error {
	server, err := gitmesh.NewBootstrapServer(&_config.Gitmesh, bootstrapAddr)
	if err != nil {
		return err
	}

	go server.Serve()

	_config.Gitmesh.Logger().WithField("addr", server.Addr()).Info("Serving bootstrap")

	if _config.Gitmesh.BootstrapStore {
		_config.Gitmesh.Logger().WithField("file", _config.Gitmesh.PeersFile()).Debug("Persisting peers")
	}

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh

	return server.Close()
}
