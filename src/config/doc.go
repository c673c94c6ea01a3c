// Package config defines the configuration for a gitmesh node.
//
// Regardless of how gitmesh is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, gitmesh relies on a data directory, defined by
// Config.DataDir, where it may find:
//
//  gitmesh.toml // (optional) the configuration file read by gitmesh run.
//  badger_db // the document database, when --store is set.
//  peers.json // the endpoints known to a bootstrap server, with --bootstrap-store.
package config
