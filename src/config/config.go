package config

import (
	"math/rand"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/mosaicnetworks/gitmesh/src/common"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultPeersFile is the default name of the file where the bootstrap
	// server keeps the known endpoints.
	DefaultPeersFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel       = "debug"
	DefaultBindAddr       = "127.0.0.1:1337"
	DefaultBootstrapAddr  = "127.0.0.1:3000"
	DefaultServiceAddr    = "127.0.0.1:8000"
	DefaultTCPTimeout     = 1000 * time.Millisecond
	DefaultGitTimeout     = 10000 * time.Millisecond
	DefaultSaveDelay      = 1000 * time.Millisecond
	DefaultResyncInterval = 10000 * time.Millisecond
	DefaultStaleLimit     = 64
	DefaultEchoLimit      = 256
	DefaultStore          = false
	DefaultBootstrapStore = false
)

// Config contains all the configuration properties of a gitmesh node.
type Config struct {
	// DataDir is the top-level directory containing gitmesh configuration and
	// data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogDir, when set, receives one log file per level in addition to the
	// standard output.
	LogDir string `mapstructure:"log-dir"`

	// BindAddr is the local address:port where this node accepts connections
	// from its peers.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address announced to the bootstrap
	// server.
	AdvertiseAddr string `mapstructure:"advertise"`

	// BootstrapAddr is the address:port of the rendezvous server. No
	// bootstrap is attempted when it is empty.
	BootstrapAddr string `mapstructure:"bootstrap"`

	// BootstrapStore makes the bootstrap server keep the known endpoints in
	// [datadir]/peers.json.
	BootstrapStore bool `mapstructure:"bootstrap-store"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Workspace is a path inside the git repository edited by this node.
	Workspace string `mapstructure:"workspace"`

	// SiteID identifies the edits of this node. A random one is picked when
	// it is zero.
	SiteID uint32 `mapstructure:"site-id"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// TCPTimeout is the timeout of peer and bootstrap connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// GitTimeout bounds every git invocation.
	GitTimeout time.Duration `mapstructure:"git-timeout"`

	// SaveDelay is the debounce of document persistence.
	SaveDelay time.Duration `mapstructure:"save-delay"`

	// ResyncInterval is the minimum time between two requests for the
	// operations of the peers.
	ResyncInterval time.Duration `mapstructure:"resync-interval"`

	// StaleLimit is the number of stale documents kept in memory.
	StaleLimit int `mapstructure:"stale-limit"`

	// EchoLimit bounds the pending buffer echoes of a file.
	EchoLimit int `mapstructure:"echo-limit"`

	// Store activates persistant storage.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:        DefaultDataDir(),
		LogLevel:       DefaultLogLevel,
		BindAddr:       DefaultBindAddr,
		ServiceAddr:    DefaultServiceAddr,
		TCPTimeout:     DefaultTCPTimeout,
		GitTimeout:     DefaultGitTimeout,
		SaveDelay:      DefaultSaveDelay,
		ResyncInterval: DefaultResyncInterval,
		StaleLimit:     DefaultStaleLimit,
		EchoLimit:      DefaultEchoLimit,
		Store:          DefaultStore,
		BootstrapStore: DefaultBootstrapStore,
		DatabaseDir:    DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level gitmesh directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitely set
// it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// PeersFile returns the path of the bootstrap peers file.
func (c *Config) PeersFile() string {
	return filepath.Join(c.DataDir, DefaultPeersFile)
}

// EnsureSiteID picks a random site id if none is set and returns it. Site ids
// 0 and 1 are reserved.
func (c *Config) EnsureSiteID() uint32 {
	if c.SiteID < 2 {
		c.SiteID = RandomSiteID()
	}
	return c.SiteID
}

// Logger returns a formatted logrus Entry, with prefix set to "gitmesh".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
		if c.LogDir != "" {
			c.logger.AddHook(lfshook.NewHook(LogFiles(c.LogDir), &logrus.JSONFormatter{}))
		}
	}
	return c.logger.WithField("prefix", "gitmesh")
}

// LogFiles maps every level to a file under dir.
func LogFiles(dir string) lfshook.PathMap {
	return lfshook.PathMap{
		logrus.DebugLevel: filepath.Join(dir, "debug.log"),
		logrus.InfoLevel:  filepath.Join(dir, "info.log"),
		logrus.WarnLevel:  filepath.Join(dir, "warn.log"),
		logrus.ErrorLevel: filepath.Join(dir, "error.log"),
		logrus.FatalLevel: filepath.Join(dir, "error.log"),
		logrus.PanicLevel: filepath.Join(dir, "error.log"),
	}
}

// RandomSiteID returns a site id above the reserved ones.
func RandomSiteID() uint32 {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return 2 + r.Uint32()%(1<<31)
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir return the default directory name for top-level gitmesh
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Gitmesh")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Gitmesh")
		} else {
			return filepath.Join(home, ".gitmesh")
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
